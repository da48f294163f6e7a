package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/debug"
	"github.com/onedayrun/platform/pkg/session"
)

// writeWait bounds a single WebSocket write.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The chat endpoint is consumed by browser clients on other origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsInbound is a client frame: a chat message or a command.
type wsInbound struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Command  string `json:"command,omitempty"`
	Query    string `json:"query,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// wsConn serializes writes to one WebSocket connection. The read loop,
// the chat event pump, and the heartbeat all share it.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func errorFrame(message string) map[string]any {
	return map[string]any{"type": "error", "content": message}
}

// handleWebsocket runs the chat protocol for one project session.
//
// Inbound frames: {"type":"message","content":...} runs a chat turn;
// {"type":"command","command":"status"|"components"|"deploy",...} serves
// the side channel. Disconnect abandons any in-flight turn and evicts
// the session; the final state is archived.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "project_id", id, "error", err)
		return
	}
	defer conn.Close()
	c := &wsConn{conn: conn}

	engine, ok := s.registry.Get(id)
	if !ok {
		s.logger.Warn("websocket for unknown project", "project_id", id)
		c.send(errorFrame("Project not found. Create a project first via POST /projects"))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown project"),
			time.Now().Add(writeWait))
		return
	}

	// The request context dies with ServeHTTP, not with the hijacked
	// connection; the read loop owns turn cancellation instead.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	defer func() {
		s.registry.Evict(id)
		s.saveSnapshot(context.Background(), engine.Snapshot())
		s.logger.Info("websocket disconnected, session evicted", "project_id", id)
	}()

	report, err := engine.Progress()
	if err != nil {
		c.send(errorFrame(err.Error()))
		return
	}
	c.send(map[string]any{
		"type":    "system",
		"content": fmt.Sprintf("Welcome to OneDay.run! Project %s is ready. Describe what you want to build.", id),
		"project": report,
	})

	pongWait := 2 * s.cfg.HeartbeatInterval
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.pingLoop(conn, stopPing)

	for {
		// A chat turn can outlast pongWait; re-arm before each read so a
		// long turn does not expire the idle deadline.
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg wsInbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Warn("websocket read failed", "project_id", id, "error", err)
			}
			return
		}
		debug.Trace("transport", "frame received",
			"project_id", id, "type", msg.Type, "command", msg.Command)

		switch msg.Type {
		case "message":
			s.runChatTurn(ctx, cancel, c, engine, msg.Content)
		case "command":
			s.runCommand(ctx, c, engine, msg)
		default:
			c.send(errorFrame("unknown message type: " + msg.Type))
		}
	}
}

// pingLoop sends heartbeat pings until the connection handler returns.
// WriteControl is safe to call concurrently with WriteJSON.
func (s *Server) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// runChatTurn streams one chat turn to the client: typing and
// response_start first, then a response_chunk per text delta and a tool
// frame per tool status, closed by response_end with the full text and a
// progress push.
//
// A failed send means the client is gone; the turn is abandoned by
// cancelling the connection context, and the remaining events are drained
// so the engine goroutine can finish.
func (s *Server) runChatTurn(ctx context.Context, cancel context.CancelFunc, c *wsConn, engine *session.Engine, content string) {
	if err := c.send(map[string]any{"type": "typing", "content": true}); err != nil {
		cancel()
		return
	}

	events, err := engine.Chat(ctx, content)
	if err != nil {
		var appErr *api.AppError
		if errors.As(err, &appErr) {
			c.send(errorFrame(appErr.Message))
		} else {
			c.send(errorFrame(err.Error()))
		}
		return
	}

	abandon := func() {
		cancel()
		for range events {
		}
	}

	if err := c.send(map[string]any{"type": "response_start"}); err != nil {
		abandon()
		return
	}

	var full strings.Builder
	for ev := range events {
		var sendErr error
		switch ev.Type {
		case api.ChatEventTextDelta:
			full.WriteString(ev.Delta)
			sendErr = c.send(map[string]any{"type": "response_chunk", "content": ev.Delta})
		case api.ChatEventToolStatus:
			sendErr = c.send(map[string]any{"type": "tool", "name": ev.Tool, "status": string(ev.Status)})
		case api.ChatEventError:
			sendErr = c.send(errorFrame(ev.Err.Message))
		}
		if sendErr != nil {
			abandon()
			return
		}
	}

	c.send(map[string]any{"type": "response_end", "full_content": full.String()})

	if report, err := engine.Progress(); err == nil {
		c.send(map[string]any{"type": "progress", "data": report})
	}
	s.saveSnapshot(ctx, engine.Snapshot())
}

// runCommand serves the WebSocket side channel.
func (s *Server) runCommand(ctx context.Context, c *wsConn, engine *session.Engine, msg wsInbound) {
	switch msg.Command {
	case "status":
		report, err := engine.Progress()
		if err != nil {
			c.send(errorFrame(err.Error()))
			return
		}
		c.send(map[string]any{"type": "status", "data": report})

	case "components":
		results := s.library.Search(msg.Query, "", "", 0)
		c.send(map[string]any{"type": "components", "data": results})

	case "deploy":
		platform := msg.Platform
		if platform == "" {
			platform = s.cfg.DefaultPlatform
		}
		project := engine.Snapshot()
		if project == nil || project.GithubRepo == "" {
			c.send(errorFrame("No GitHub repo configured"))
			return
		}
		result, err := s.deployments.Deploy(ctx, platform, project.GithubRepo, "")
		if err != nil {
			c.send(errorFrame(err.Error()))
			return
		}
		if result.URL != "" {
			engine.Mutate(func(p *api.ProjectContext) {
				p.DeploymentURL = result.URL
				p.DeploymentPlatform = platform
				p.Touch()
			})
			s.saveSnapshot(ctx, engine.Snapshot())
		}
		c.send(map[string]any{"type": "deployment", "data": result})

	default:
		c.send(errorFrame("unknown command: " + msg.Command))
	}
}
