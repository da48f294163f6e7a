package api

// ChatEventType identifies the kind of a chat stream event.
type ChatEventType string

const (
	// ChatEventTextDelta carries an incremental fragment of assistant text.
	ChatEventTextDelta ChatEventType = "text_delta"
	// ChatEventToolStatus reports the lifecycle of one tool dispatch.
	ChatEventToolStatus ChatEventType = "tool_status"
	// ChatEventError carries the single terminal error of a failed turn.
	ChatEventError ChatEventType = "error"
)

// ToolStatus is the lifecycle state reported by a tool_status event.
type ToolStatus string

const (
	ToolStatusRunning ToolStatus = "running"
	ToolStatusDone    ToolStatus = "done"
	ToolStatusFailed  ToolStatus = "failed"
)

// ChatEvent is one unit of the streamed response to a chat turn.
// The consumer reads events until the channel closes; closure is the
// end-of-turn marker. A failed turn carries exactly one error event
// before the close.
type ChatEvent struct {
	Type ChatEventType `json:"type"`

	// Delta holds the text fragment for text_delta events.
	Delta string `json:"delta,omitempty"`

	// Tool and Status describe the dispatch for tool_status events.
	Tool   string     `json:"tool,omitempty"`
	Status ToolStatus `json:"status,omitempty"`

	// Err holds the structured error for error events.
	Err *AppError `json:"error,omitempty"`
}
