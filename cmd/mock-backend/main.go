// Command mock-backend runs a deterministic Chat Completions server for
// local platform development: the server can be pointed at it via
// ONEDAY_BACKEND_URL and exercised end to end without a real model.
//
// Responses are keyed to the conversation: when tool schemas are offered
// and the user mentions components or deployment, the mock answers with
// the matching tool call; otherwise it streams a short canned reply.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []any         `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function funcCall `json:"function"`
}

type funcCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handler ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	if req.Stream {
		handleStreaming(w, &req)
		return
	}

	resp := classifyAndRespond(&req)
	resp.Model = req.Model
	if resp.Model == "" {
		resp.Model = "mock-model"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// classifyAndRespond picks a canned answer for the conversation. A tool
// call is only emitted when schemas were offered AND the last user
// message asks for the matching action, and never when the turn already
// carries a tool result (otherwise the session engine would loop until
// its turn budget runs out).
func classifyAndRespond(req *chatRequest) chatResponse {
	if len(req.Tools) > 0 && !hasToolResult(req) {
		lastMsg := strings.ToLower(getLastUserMessage(req))
		switch {
		case strings.Contains(lastMsg, "component"), strings.Contains(lastMsg, "auth"):
			return toolCallResponse("search_components", `{"query":"auth","limit":5}`)
		case strings.Contains(lastMsg, "deploy"):
			return toolCallResponse("deploy_project", `{"platform":"railway"}`)
		case strings.Contains(lastMsg, "requirement"):
			return toolCallResponse("analyze_requirements", `{"conversation":"mock analysis"}`)
		}
	}

	return basicTextResponse(req)
}

func basicTextResponse(req *chatRequest) chatResponse {
	text := "Got it. I'll start with the discovery phase: what should the application do, and who will use it?"

	lastMsg := strings.ToLower(getLastUserMessage(req))
	if strings.Contains(lastMsg, "shop") || strings.Contains(lastMsg, "store") {
		text = "An online shop it is. I'll plan a FastAPI backend with a product catalog, cart, and checkout."
	}

	return makeTextResponse(text)
}

func toolCallResponse(name, arguments string) chatResponse {
	content := (*string)(nil)
	return chatResponse{
		ID:     "chatcmpl-mock-tool",
		Object: "chat.completion",
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMsg{
					Role:    "assistant",
					Content: content,
					ToolCalls: []toolCall{
						{
							ID:   "call_mock_1",
							Type: "function",
							Function: funcCall{
								Name:      name,
								Arguments: arguments,
							},
						},
					},
				},
				FinishReason: "tool_calls",
			},
		},
		Usage: chatUsage{PromptTokens: 20, CompletionTokens: 15, TotalTokens: 35},
	}
}

func makeTextResponse(text string) chatResponse {
	return chatResponse{
		ID:     "chatcmpl-mock-text",
		Object: "chat.completion",
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMsg{
					Role:    "assistant",
					Content: &text,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// --- Streaming ---

func handleStreaming(w http.ResponseWriter, req *chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	resp := classifyAndRespond(req)
	choice := resp.Choices[0]

	// Send role chunk.
	writeSSEChunk(w, model, "", true)
	flusher.Flush()

	if len(choice.Message.ToolCalls) > 0 {
		writeToolCallChunk(w, model, choice.Message.ToolCalls[0])
		flusher.Flush()
		writeFinishChunk(w, model, "tool_calls", 15)
		flusher.Flush()
	} else {
		tokens := strings.SplitAfter(*choice.Message.Content, " ")
		for _, token := range tokens {
			writeSSEChunk(w, model, token, false)
			flusher.Flush()
		}
		writeFinishChunk(w, model, "stop", len(tokens))
		flusher.Flush()
	}

	// Send [DONE].
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSEChunk(w http.ResponseWriter, model, content string, isRole bool) {
	delta := map[string]any{}
	if isRole {
		delta["role"] = "assistant"
	}
	if content != "" {
		delta["content"] = content
	}

	writeChunk(w, model, delta, nil, nil)
}

func writeToolCallChunk(w http.ResponseWriter, model string, call toolCall) {
	delta := map[string]any{
		"tool_calls": []any{
			map[string]any{
				"index": 0,
				"id":    call.ID,
				"type":  call.Type,
				"function": map[string]any{
					"name":      call.Function.Name,
					"arguments": call.Function.Arguments,
				},
			},
		},
	}
	writeChunk(w, model, delta, nil, nil)
}

func writeFinishChunk(w http.ResponseWriter, model, reason string, tokenCount int) {
	usage := map[string]any{
		"prompt_tokens":     10,
		"completion_tokens": tokenCount,
		"total_tokens":      10 + tokenCount,
	}
	writeChunk(w, model, map[string]any{}, &reason, usage)
}

func writeChunk(w http.ResponseWriter, model string, delta map[string]any, finishReason *string, usage map[string]any) {
	chunk := map[string]any{
		"id":     "chatcmpl-mock-stream",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			},
		},
	}
	if usage != nil {
		chunk["usage"] = usage
	}

	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "oneday-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

func getLastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			if s, ok := req.Messages[i].Content.(string); ok {
				return s
			}
		}
	}
	return ""
}

// hasToolResult reports whether the conversation already carries a tool
// message, meaning the current turn is a follow-up after dispatch.
func hasToolResult(req *chatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "tool" {
			return true
		}
	}
	return false
}
