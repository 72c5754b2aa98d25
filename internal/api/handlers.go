package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freightgraph/internal/explorer"
	"freightgraph/internal/route"
)

// Exploration stream event types.
const (
	EventStarted   = "exploration.started"
	EventProgress  = "exploration.progress"
	EventCompleted = "exploration.completed"
	EventFailed    = "exploration.failed"

	EventGraphBuilt = "graph.built"
)

// MultimodalHandler handles POST /v1/graph/multimodal
func (s *Server) MultimodalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req multimodalRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, "Invalid graph request", err)
		return
	}
	g, err := s.App.Builder().Build(r.Context(), req.toBuild())
	if err != nil {
		s.writeError(w, r, "Graph build failed", err)
		return
	}
	s.App.Webhooks.Emit(EventGraphBuilt, map[string]any{"origin": req.Origin, "destination": req.Destination, "stats": g.Stats})
	writeJSON(w, http.StatusOK, g)
}

type shipRoutesResponse struct {
	StreamID string `json:"streamId,omitempty"`
	*explorer.Result
}

// ShipRoutesHandler handles POST /v1/graph/ship-routes. When the request
// names a streamId, progress is published to subscribers of that stream.
func (s *Server) ShipRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req shipRoutesRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, "Invalid exploration request", err)
		return
	}
	res, err := s.explore(r.Context(), req, nil)
	if err != nil {
		s.writeError(w, r, "Exploration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, shipRoutesResponse{StreamID: req.StreamID, Result: res})
}

// explore runs one exploration, publishing to req.StreamID when set.
// explore runs one exploration. When the request names a streamId the run
// publishes started, progress and then completed or failed to that stream.
// progress, when set, also receives every snapshot.
func (s *Server) explore(ctx context.Context, req shipRoutesRequest, progress func(explorer.Progress)) (*explorer.Result, error) {
	sid := req.StreamID
	onProgress := progress
	if sid != "" {
		s.Broker.Publish(sid, SSEEvent{Type: EventStarted, Data: map[string]any{"streamId": sid, "startPort": req.StartPort, "endPort": req.EndPort}})
		onProgress = func(p explorer.Progress) {
			if progress != nil {
				progress(p)
			}
			s.Broker.Publish(sid, SSEEvent{Type: EventProgress, Data: p})
		}
	}
	res, err := s.App.Explorer().Explore(ctx, req.toExplore(), onProgress)
	s.notifyExploration(req, res, err)
	if sid != "" {
		if err != nil {
			s.Broker.Publish(sid, SSEEvent{Type: EventFailed, Data: map[string]any{"streamId": sid, "error": err.Error()}})
		} else {
			s.Broker.Publish(sid, SSEEvent{Type: EventCompleted, Data: map[string]any{"streamId": sid, "completeRoutes": len(res.CompleteRoutes), "stats": res.Stats}})
		}
	}
	return res, err
}

// notifyExploration tells webhook subscribers how an exploration ended.
func (s *Server) notifyExploration(req shipRoutesRequest, res *explorer.Result, err error) {
	data := map[string]any{"streamId": req.StreamID, "startPort": req.StartPort, "endPort": req.EndPort}
	if err != nil {
		data["error"] = err.Error()
		s.App.Webhooks.Emit(EventFailed, data)
		return
	}
	data["completeRoutes"] = len(res.CompleteRoutes)
	data["stats"] = res.Stats
	s.App.Webhooks.Emit(EventCompleted, data)
}

// ExplorationEventsHandler streams GET /v1/explorations/{streamId}/events as
// server-sent events until the exploration finishes or the client leaves.
func (s *Server) ExplorationEventsHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/explorations/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "events" {
		writeProblem(w, http.StatusNotFound, "Not Found", "expected /v1/explorations/{streamId}/events", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := parts[0]
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"streamId\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(evt.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
			if evt.Type == EventCompleted || evt.Type == EventFailed {
				return
			}
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// ShortestHandler handles POST /v1/routes/shortest
func (s *Server) ShortestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req shortestRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, "Invalid route request", err)
		return
	}
	res, err := route.Find(req.Graph, req.Start, req.End, route.Options{
		Criterion: req.Criterion,
		Weights:   req.Weights,
		Blocked:   req.Blocked,
	})
	if err != nil {
		s.writeError(w, r, "Route search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdminCacheHandler handles GET (stats) and DELETE ?namespace= (invalidate)
// on /v1/admin/cache.
func (s *Server) AdminCacheHandler(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuthorized(r) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "valid X-Admin-Token required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		stats, err := s.App.Cache.Stats(r.Context())
		if err != nil {
			s.writeError(w, r, "Cache stats failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"namespaces": stats})
	case http.MethodDelete:
		ns := r.URL.Query().Get("namespace")
		if ns == "" {
			writeProblem(w, http.StatusBadRequest, "Missing namespace", "namespace query parameter required", r.URL.Path)
			return
		}
		if err := s.App.Cache.Invalidate(r.Context(), ns); err != nil {
			s.writeError(w, r, "Cache invalidation failed", err)
			return
		}
		s.Log.Info("cache namespace cleared", zap.String("namespace", ns))
		writeJSON(w, http.StatusOK, map[string]any{"cleared": ns})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports whether the cache backend answers.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.App.Ready(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// NewStreamID returns an id a client can subscribe to before starting an
// exploration.
func NewStreamID() string { return uuid.NewString() }
