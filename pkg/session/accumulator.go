package session

import (
	"sort"
	"strings"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/provider"
	"github.com/onedayrun/platform/pkg/tools"
)

// PendingToolCall is a tool invocation being assembled from stream
// fragments. It is created on the first fragment referencing its index
// and grows with every subsequent fragment for the same index.
type PendingToolCall struct {
	Index int
	ID    string
	Name  string
	Args  strings.Builder
}

// Accumulator folds the ordered provider event stream of one turn into a
// plain-text transcript and a set of pending tool calls. Text deltas pass
// through in arrival order; tool calls are finalized only once the stream
// has ended, because argument fragments may split at arbitrary byte
// boundaries.
type Accumulator struct {
	text    strings.Builder
	pending map[int]*PendingToolCall
	usage   *provider.Usage
	finish  string
}

// NewAccumulator creates an empty Accumulator for one turn.
func NewAccumulator() *Accumulator {
	return &Accumulator{pending: make(map[int]*PendingToolCall)}
}

// Feed consumes one provider event and returns the text delta to emit to
// the caller, if any. Error events must be handled by the caller before
// feeding.
func (a *Accumulator) Feed(ev provider.Event) string {
	switch ev.Type {
	case provider.EventTextDelta, provider.EventTextDone:
		// The finish chunk can carry trailing content that was never
		// sent as a delta.
		if ev.Delta != "" {
			a.text.WriteString(ev.Delta)
			return ev.Delta
		}

	case provider.EventToolCallDelta:
		buf, ok := a.pending[ev.ToolCallIndex]
		if !ok {
			buf = &PendingToolCall{Index: ev.ToolCallIndex}
			a.pending[ev.ToolCallIndex] = buf
		}
		if buf.ID == "" {
			buf.ID = ev.ToolCallID
		}
		if buf.Name == "" {
			buf.Name = ev.FunctionName
		}
		buf.Args.WriteString(ev.Delta)

	case provider.EventToolCallDone:
		// The adapter flushes complete calls at end of stream; the full
		// argument string replaces whatever fragments accumulated so a
		// call is never assembled twice.
		buf := &PendingToolCall{
			Index: ev.ToolCallIndex,
			ID:    ev.ToolCallID,
			Name:  ev.FunctionName,
		}
		buf.Args.WriteString(ev.Delta)
		a.pending[ev.ToolCallIndex] = buf

	case provider.EventDone:
		if ev.Usage != nil {
			a.usage = ev.Usage
		}
		if ev.FinishReason != "" {
			a.finish = ev.FinishReason
		}
	}
	return ""
}

// Text returns the full assistant text accumulated so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Usage returns the token usage reported by the backend, or nil.
func (a *Accumulator) Usage() *provider.Usage {
	return a.usage
}

// FinishReason returns the finish reason from the final stream event.
func (a *Accumulator) FinishReason() string {
	return a.finish
}

// HasToolCalls reports whether any tool call fragments arrived this turn.
func (a *Accumulator) HasToolCalls() bool {
	return len(a.pending) > 0
}

// FinalizeToolCalls converts the pending tool calls into dispatchable
// calls, ordered by ascending fragment index. Calls missing an ID get a
// generated one so the tool-role reply can always be correlated.
func (a *Accumulator) FinalizeToolCalls() []tools.Call {
	if len(a.pending) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(a.pending))
	for idx := range a.pending {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	calls := make([]tools.Call, 0, len(indexes))
	for _, idx := range indexes {
		buf := a.pending[idx]
		id := buf.ID
		if id == "" {
			id = api.NewCallID()
		}
		calls = append(calls, tools.Call{
			ID:        id,
			Name:      buf.Name,
			Arguments: buf.Args.String(),
		})
	}
	return calls
}
