package api

import (
	"bufio"
	"errors"
	"expvar"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"freightgraph/internal/app"
	"freightgraph/internal/metrics"
)

type Server struct {
	App    *app.App
	Broker EventBroker
	Log    *zap.Logger
}

// NewServer creates a Server. A nil broker selects the in-process one.
func NewServer(a *app.App, broker EventBroker) *Server {
	if broker == nil {
		broker = NewBroker()
	}
	return &Server{App: a, Broker: broker, Log: a.Log.Named("api")}
}

// NewEventBroker picks Redis when a URL is configured, falling back to the
// in-process broker when Redis cannot be reached.
func NewEventBroker(redisURL string, log *zap.Logger) EventBroker {
	if redisURL == "" {
		return NewBroker()
	}
	rb, err := NewRedisBroker(redisURL, log)
	if err != nil {
		log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		return NewBroker()
	}
	return rb
}

// Routes returns the service mux wrapped in logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Graphs and routes
	mux.HandleFunc("/v1/graph/multimodal", s.MultimodalHandler)
	mux.HandleFunc("/v1/graph/ship-routes", s.ShipRoutesHandler)
	mux.HandleFunc("/v1/routes/shortest", s.ShortestHandler)

	// Exploration progress
	mux.HandleFunc("/v1/explorations/", s.ExplorationEventsHandler) // /v1/explorations/{streamId}/events
	mux.HandleFunc("/v1/explore/ws", s.ExploreWSHandler)

	// Admin
	mux.HandleFunc("/v1/admin/cache", s.AdminCacheHandler)

	// Health and introspection
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/info", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)

	return s.logMiddleware(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying connection.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		s.Log.Info("request",
			zap.String("remote", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", dur),
		)
	})
}
