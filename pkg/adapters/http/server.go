package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/benchrig/benchrig/pkg/state"
)

// MaxBodySize bounds a POSTed state value.
const MaxBodySize = 1 << 20

// Server relays a state tree to remote UIs: reads and writes by path, plus
// a server-sent event stream of every mutation.
type Server struct {
	Tree    *state.Tree
	Streams *StreamManager
	Logger  *slog.Logger

	metrics http.Handler
	detach  func()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a relay for tree and starts broadcasting its mutations.
// Call Close to stop.
func NewServer(tree *state.Tree, opts ...Option) *Server {
	s := &Server{
		Tree:    tree,
		Streams: NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.Streams.logger = s.Logger
	s.detach = tree.Subscribe(s.Streams.Broadcast)
	return s
}

// Close stops broadcasting.
func (s *Server) Close() {
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

// Handler returns the HTTP routes of the relay.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/state", s.GetState)
	r.Get("/state/*", s.GetState)
	r.Post("/state", s.UpdateState)
	r.Post("/state/*", s.UpdateState)
	r.Delete("/state/*", s.DeleteState)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func statePath(r *http.Request) state.Path {
	return state.ParsePath(chi.URLParam(r, "*"))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetState handles GET /state/{path}.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Tree.Get(statePath(r)))
}

// UpdateState handles POST /state/{path} with a JSON body and answers with
// the value now stored there.
func (s *Server) UpdateState(w http.ResponseWriter, r *http.Request) {
	var body any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("UpdateState: Invalid request body", "err", err)
		return
	}

	path := statePath(r)
	s.Tree.Update(path, normalizeNumbers(body))
	s.Logger.Debug("State updated over HTTP", "path", path.String())
	s.writeJSON(w, http.StatusOK, s.Tree.Get(path))
}

// DeleteState handles DELETE /state/{path}.
func (s *Server) DeleteState(w http.ResponseWriter, r *http.Request) {
	path := statePath(r)
	if len(path) == 0 {
		http.Error(w, "Refusing to delete the root", http.StatusBadRequest)
		return
	}
	s.Tree.Delete(path)
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /events?prefix=a/b (SSE). Each event carries
// {path, content, operation} with the path relative to prefix.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	prefix := state.ParsePath(r.URL.Query().Get("prefix"))
	ch, cancel := s.Streams.Subscribe(prefix)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Info("SSE: Client subscribed", "prefix", prefix.String())

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: Client disconnected", "prefix", prefix.String())
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}

// normalizeNumbers turns json.Number into int64 where exact, float64 otherwise,
// so criteria and test bodies see ordinary Go numbers.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	default:
		return v
	}
}
