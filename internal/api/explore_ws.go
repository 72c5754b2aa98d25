package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"freightgraph/internal/errs"
	"freightgraph/internal/explorer"
)

// Exploration over WebSocket. The client sends
//
//	{"type":"connection_init"}
//	{"type":"explore","id":"1","payload":{"startPort":"INCOK","endPort":"NLRTM","startDate":"2025-05-01"}}
//	{"type":"stop","id":"1"}
//
// and receives connection_ack, then progress messages for id 1 followed by
// exactly one result or error message.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn serialises writes; gorilla connections allow a single writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(typ, id string, v any) error {
	var payload json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = b
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(wsMessage{Type: typ, ID: id, Payload: payload})
}

// ExploreWSHandler handles /v1/explore/ws
func (s *Server) ExploreWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	c := &wsConn{conn: conn}

	runs := newWSRuns()
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = c.send("connection_ack", "", nil)
			wg.Add(1)
			go func() {
				defer wg.Done()
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if err := c.send("ping", "", nil); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = c.send("pong", "", nil)
		case "explore":
			id := msg.ID
			if id == "" {
				id = NewStreamID()
			}
			var req shipRoutesRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				_ = c.send("error", id, Problem{Type: "about:blank", Title: "Invalid exploration request", Status: http.StatusBadRequest, Detail: err.Error()})
				continue
			}
			if err := validate.Struct(req); err != nil {
				_ = c.send("error", id, Problem{Type: "about:blank", Title: "Invalid exploration request", Status: http.StatusBadRequest, Detail: err.Error()})
				continue
			}
			runCtx, stop := context.WithCancel(ctx)
			token := runs.start(id, stop)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer stop()
				s.exploreWS(runCtx, c, id, req)
				runs.finish(id, token)
			}()
		case "stop", "complete":
			runs.stop(msg.ID)
		}
	}
}

// wsRuns tracks the cancel func of each running exploration by client id.
// Starting an id that is still running cancels the older run.
type wsRuns struct {
	mu   sync.Mutex
	runs map[string]*wsRun
}

type wsRun struct{ cancel context.CancelFunc }

func newWSRuns() *wsRuns { return &wsRuns{runs: map[string]*wsRun{}} }

func (w *wsRuns) start(id string, cancel context.CancelFunc) *wsRun {
	r := &wsRun{cancel: cancel}
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev := w.runs[id]; prev != nil {
		prev.cancel()
	}
	w.runs[id] = r
	return r
}

// finish forgets id only while it still refers to r.
func (w *wsRuns) finish(id string, r *wsRun) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.runs[id] == r {
		delete(w.runs, id)
	}
}

func (w *wsRuns) stop(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.runs[id]
	if r == nil {
		return false
	}
	r.cancel()
	return true
}

func (s *Server) exploreWS(ctx context.Context, c *wsConn, id string, req shipRoutesRequest) {
	res, err := s.explore(ctx, req, func(p explorer.Progress) {
		_ = c.send("progress", id, p)
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errs.IsValidation(err) {
			status = http.StatusBadRequest
		} else {
			s.Log.Error("websocket exploration failed", zap.String("id", id), zap.Error(err))
		}
		_ = c.send("error", id, Problem{Type: "about:blank", Title: "Exploration failed", Status: status, Detail: err.Error()})
		return
	}
	_ = c.send("result", id, res)
}
