package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onedayrun/platform/pkg/catalog"
	"github.com/onedayrun/platform/pkg/deploy"
	"github.com/onedayrun/platform/pkg/provider"
	"github.com/onedayrun/platform/pkg/session"
	"github.com/onedayrun/platform/pkg/storage/memory"
)

func dialWS(t *testing.T, ts *httptest.Server, projectID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + projectID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	return frame
}

func TestWebsocketUnknownProject(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "proj_missing")

	frame := readFrame(t, conn)
	if frame["type"] != "error" {
		t.Fatalf("frame type = %v, want error", frame["type"])
	}

	// The server closes the connection after the error frame.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var next map[string]any
	if err := conn.ReadJSON(&next); err == nil {
		t.Errorf("expected connection close, got frame %v", next)
	}
}

func TestWebsocketChatTurn(t *testing.T) {
	scripts := [][]provider.Event{
		{
			{Type: provider.EventTextDelta, Delta: "Hello"},
			{Type: provider.EventTextDelta, Delta: " there"},
			{Type: provider.EventDone, FinishReason: "stop"},
		},
	}
	s := newTestServer(t, scripts)
	id := createProject(t, s)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, id)

	welcome := readFrame(t, conn)
	if welcome["type"] != "system" {
		t.Fatalf("welcome type = %v, want system", welcome["type"])
	}
	project, _ := welcome["project"].(map[string]any)
	if project["project_id"] != id {
		t.Errorf("welcome project_id = %v, want %s", project["project_id"], id)
	}

	if err := conn.WriteJSON(map[string]any{"type": "message", "content": "hi"}); err != nil {
		t.Fatalf("writing message: %v", err)
	}

	wantTypes := []string{"typing", "response_start", "response_chunk", "response_chunk", "response_end", "progress"}
	var chunks []string
	for _, want := range wantTypes {
		frame := readFrame(t, conn)
		if frame["type"] != want {
			t.Fatalf("frame type = %v, want %s", frame["type"], want)
		}
		switch want {
		case "response_chunk":
			chunks = append(chunks, frame["content"].(string))
		case "response_end":
			if frame["full_content"] != "Hello there" {
				t.Errorf("full_content = %v, want %q", frame["full_content"], "Hello there")
			}
		case "progress":
			data, _ := frame["data"].(map[string]any)
			if data["project_id"] != id {
				t.Errorf("progress project_id = %v, want %s", data["project_id"], id)
			}
		}
	}
	if got := strings.Join(chunks, ""); got != "Hello there" {
		t.Errorf("chunks = %q, want %q", got, "Hello there")
	}
}

func TestWebsocketStatusCommand(t *testing.T) {
	s := newTestServer(t, nil)
	id := createProject(t, s)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, id)
	readFrame(t, conn) // welcome

	if err := conn.WriteJSON(map[string]any{"type": "command", "command": "status"}); err != nil {
		t.Fatalf("writing command: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["type"] != "status" {
		t.Fatalf("frame type = %v, want status", frame["type"])
	}
	data, _ := frame["data"].(map[string]any)
	if data["current_phase"] != "discovery" {
		t.Errorf("current_phase = %v, want discovery", data["current_phase"])
	}
}

func TestWebsocketComponentsCommand(t *testing.T) {
	s := newTestServer(t, nil)
	id := createProject(t, s)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, id)
	readFrame(t, conn) // welcome

	if err := conn.WriteJSON(map[string]any{"type": "command", "command": "components", "query": "auth"}); err != nil {
		t.Fatalf("writing command: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["type"] != "components" {
		t.Fatalf("frame type = %v, want components", frame["type"])
	}
	data, _ := frame["data"].([]any)
	if len(data) == 0 {
		t.Error("expected at least one component for 'auth'")
	}
}

func TestWebsocketDeployCommandWithoutRepo(t *testing.T) {
	s := newTestServer(t, nil)
	id := createProject(t, s)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, id)
	readFrame(t, conn) // welcome

	if err := conn.WriteJSON(map[string]any{"type": "command", "command": "deploy", "platform": "railway"}); err != nil {
		t.Fatalf("writing command: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["type"] != "error" {
		t.Fatalf("frame type = %v, want error", frame["type"])
	}
	if frame["content"] != "No GitHub repo configured" {
		t.Errorf("content = %v, want %q", frame["content"], "No GitHub repo configured")
	}
}

func TestWebsocketUnknownMessageType(t *testing.T) {
	s := newTestServer(t, nil)
	id := createProject(t, s)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, id)
	readFrame(t, conn) // welcome

	if err := conn.WriteJSON(map[string]any{"type": "noise"}); err != nil {
		t.Fatalf("writing frame: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["type"] != "error" {
		t.Fatalf("frame type = %v, want error", frame["type"])
	}
}

func TestWebsocketDisconnectEvictsSession(t *testing.T) {
	s := newTestServer(t, nil)
	id := createProject(t, s)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, id)
	readFrame(t, conn) // welcome

	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.registry.Get(id); !ok {
			// Archived snapshot keeps serving the progress API.
			rec, _ := doJSON(t, s.Handler(), "GET", "/projects/"+id, nil)
			if rec.Code != 200 {
				t.Fatalf("archived progress: status = %d, want 200", rec.Code)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session was not evicted after disconnect")
}

// endlessProvider streams deltas until the request context is cancelled,
// then reports the cancellation.
type endlessProvider struct {
	once      sync.Once
	cancelled chan struct{}
}

func (p *endlessProvider) Name() string { return "endless" }

func (p *endlessProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{Streaming: true, ToolCalling: true}
}

func (p *endlessProvider) Complete(_ context.Context, _ *provider.Request) (*provider.Response, error) {
	return &provider.Response{Text: "ok"}, nil
}

func (p *endlessProvider) Stream(ctx context.Context, _ *provider.Request) (<-chan provider.Event, error) {
	ch := make(chan provider.Event)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				p.once.Do(func() { close(p.cancelled) })
				return
			case ch <- provider.Event{Type: provider.EventTextDelta, Delta: "chunk "}:
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
	return ch, nil
}

func (p *endlessProvider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}

func (p *endlessProvider) Close() error { return nil }

func TestWebsocketDisconnectAbandonsInFlightTurn(t *testing.T) {
	p := &endlessProvider{cancelled: make(chan struct{})}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(Config{}, Deps{
		Provider:     p,
		EngineConfig: session.Config{Model: "test-model", MaxTurns: 4},
		Registry:     session.NewRegistry(0),
		Archive:      memory.New(100),
		Library:      catalog.NewLibrary(),
		Deployments:  deploy.NewManager("", "", "", logger),
		Logger:       logger,
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	id := createProject(t, s)

	conn := dialWS(t, ts, id)
	readFrame(t, conn) // welcome

	if err := conn.WriteJSON(map[string]any{"type": "message", "content": "build a shop"}); err != nil {
		t.Fatalf("writing message: %v", err)
	}
	readFrame(t, conn) // typing
	readFrame(t, conn) // response_start
	readFrame(t, conn) // first chunk: the turn is in flight

	conn.Close()

	select {
	case <-p.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("provider stream not cancelled after client disconnect")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := s.registry.Get(id); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("session not evicted after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
