package litellm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/provider"
)

// ToolCallBuffer tracks incremental tool call argument assembly across
// multiple SSE chunks for a single tool call index.
type ToolCallBuffer struct {
	ID   string
	Name string
	Args strings.Builder
}

// ParseSSEStream reads Chat Completions SSE chunks from the given reader,
// translates each chunk to provider.Event values, and sends them on ch.
// The channel is NOT closed by this function; the caller is responsible
// for closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func ParseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.Event) {
	scanner := bufio.NewScanner(body)

	// Track tool call argument buffers across chunks (keyed by tool call index).
	toolCalls := make(map[int]*ToolCallBuffer)

	for scanner.Scan() {
		// Check for context cancellation between lines.
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines that don't start with "data: " are ignored
		// (e.g., empty lines, comments starting with ":").
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")

		// Handle the [DONE] sentinel.
		if payload == "[DONE]" {
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", Truncate(payload, 200),
			)
			continue
		}

		TranslateChunk(&chunk, toolCalls, ch)
	}

	// Scanner error (e.g., connection dropped).
	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		ch <- provider.Event{
			Type: provider.EventError,
			Err:  api.NewProviderError("SSE stream read error: " + err.Error()),
		}
	}
}

// TranslateChunk converts a single ChatCompletionChunk into one or more
// provider.Event values sent on the channel. The toolCalls map tracks
// incremental tool call argument assembly across chunks.
func TranslateChunk(chunk *ChatCompletionChunk, toolCalls map[int]*ToolCallBuffer, ch chan<- provider.Event) {
	// No choices means nothing to translate (e.g., a usage-only final chunk).
	if len(chunk.Choices) == 0 {
		// Usage-only chunk, sent with stream_options.include_usage.
		if chunk.Usage != nil {
			ch <- provider.Event{
				Type: provider.EventDone,
				Usage: &provider.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				},
			}
		}
		return
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	// A finish_reason signals stream completion for this choice.
	if choice.FinishReason != nil {
		reason := *choice.FinishReason

		// If we have buffered tool calls, flush them as done events.
		if reason == "tool_calls" || len(toolCalls) > 0 {
			FlushToolCalls(toolCalls, ch)
		}

		ch <- provider.Event{
			Type:  provider.EventTextDone,
			Delta: ExtractDeltaContent(delta.Content),
		}

		doneEvent := provider.Event{
			Type:         provider.EventDone,
			FinishReason: reason,
		}
		if chunk.Usage != nil {
			doneEvent.Usage = &provider.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		ch <- doneEvent
		return
	}

	// Handle tool call deltas.
	if len(delta.ToolCalls) > 0 {
		for _, tc := range delta.ToolCalls {
			buf, exists := toolCalls[tc.Index]
			if !exists {
				// First chunk for this tool call index: contains id and function name.
				buf = &ToolCallBuffer{
					ID:   tc.ID,
					Name: tc.Function.Name,
				}
				toolCalls[tc.Index] = buf

				ch <- provider.Event{
					Type:          provider.EventToolCallDelta,
					ToolCallIndex: tc.Index,
					ToolCallID:    tc.ID,
					FunctionName:  tc.Function.Name,
					Delta:         tc.Function.Arguments,
				}
			} else {
				// Continuation chunk: accumulate arguments.
				ch <- provider.Event{
					Type:          provider.EventToolCallDelta,
					ToolCallIndex: tc.Index,
					ToolCallID:    buf.ID,
					Delta:         tc.Function.Arguments,
				}
			}

			buf.Args.WriteString(tc.Function.Arguments)
		}
		return
	}

	// Handle text content delta.
	if delta.Content != nil && *delta.Content != "" {
		ch <- provider.Event{
			Type:  provider.EventTextDelta,
			Delta: *delta.Content,
		}
		return
	}

	// Handle role-only chunk (first chunk signaling a new message).
	if delta.Role != "" {
		ch <- provider.Event{
			Type:  provider.EventTextDelta,
			Delta: "", // Empty delta signals new message start.
		}
		return
	}

	// Empty delta with no content, no role, no tool calls.
	// This can happen with some backends. Silently skip.
}

// FlushToolCalls emits EventToolCallDone for each buffered tool call
// and clears the buffer. Buffers missing an ID get a generated one so
// the tool-role reply can always be correlated.
func FlushToolCalls(toolCalls map[int]*ToolCallBuffer, ch chan<- provider.Event) {
	for idx, buf := range toolCalls {
		id := buf.ID
		if id == "" {
			id = api.NewCallID()
		}
		ch <- provider.Event{
			Type:          provider.EventToolCallDone,
			ToolCallIndex: idx,
			ToolCallID:    id,
			FunctionName:  buf.Name,
			Delta:         buf.Args.String(),
		}
	}
	for k := range toolCalls {
		delete(toolCalls, k)
	}
}

// ExtractDeltaContent safely extracts the content string from a delta pointer.
func ExtractDeltaContent(content *string) string {
	if content == nil {
		return ""
	}
	return *content
}

// Truncate limits a string to maxLen characters for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
