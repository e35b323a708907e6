// Package host exposes gemdesk's operations to the shell UI as a local HTTP
// API: session management, login flow control, catalog fetch, manifest
// resolution, an SSE feed of login events, and Prometheus metrics.
package host

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemdesk/gemdesk/internal/apperr"
	"github.com/gemdesk/gemdesk/internal/catalog"
	"github.com/gemdesk/gemdesk/internal/login"
	"github.com/gemdesk/gemdesk/internal/manifest"
	"github.com/gemdesk/gemdesk/internal/session"
)

// Server wires the core components behind HTTP handlers.
type Server struct {
	store    *session.Store
	login    *login.Controller
	catalog  *catalog.Aggregator
	resolver *manifest.Resolver
	broker   *Broker
	metrics  *Metrics
	log      *slog.Logger
}

// New returns a Server. metrics may be nil (e.g. in tests).
func New(store *session.Store, lc *login.Controller, agg *catalog.Aggregator, res *manifest.Resolver, broker *Broker, metrics *Metrics, log *slog.Logger) *Server {
	return &Server{
		store:    store,
		login:    lc,
		catalog:  agg,
		resolver: res,
		broker:   broker,
		metrics:  metrics,
		log:      log,
	}
}

// Router builds the host API routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	if s.metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			s.metrics.Handler().ServeHTTP(w, req)
		})
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.getSession)
		r.Put("/session", s.setSession)
		r.Delete("/session", s.clearSession)
		r.Post("/login", s.startLogin)
		r.Delete("/login", s.cancelLogin)
		r.Get("/streams", s.fetchStreams)
		r.Get("/manifest", s.resolveManifest)
		r.Get("/events", s.events)
	})
	return r
}

// getSession handles GET /api/session. 204 when no session is active.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// setSession handles PUT /api/session (the shell restoring a session it
// obtained elsewhere). The store does not validate contents; that is the
// caller's responsibility.
func (s *Server) setSession(w http.ResponseWriter, r *http.Request) {
	var sess session.Session
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, "parse session body", err))
		return
	}
	s.store.Set(sess)
	if s.metrics != nil {
		s.metrics.SetAuthenticated(true)
	}
	w.WriteHeader(http.StatusNoContent)
}

// clearSession handles DELETE /api/session (logout).
func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	if s.metrics != nil {
		s.metrics.SetAuthenticated(false)
	}
	w.WriteHeader(http.StatusNoContent)
}

// startLogin handles POST /api/login. Idempotent while a surface is open.
func (s *Server) startLogin(w http.ResponseWriter, r *http.Request) {
	if err := s.login.Start(); err != nil {
		s.log.Error("start login", "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// cancelLogin handles DELETE /api/login.
func (s *Server) cancelLogin(w http.ResponseWriter, r *http.Request) {
	s.login.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// fetchStreams handles GET /api/streams.
func (s *Server) fetchStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := s.catalog.Fetch(r.Context())
	if s.metrics != nil {
		s.metrics.ObserveCatalog(err, len(streams))
	}
	if err != nil {
		s.log.Error("fetch catalog", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streams)
}

// resolveManifest handles GET /api/manifest?streamUrl=...
func (s *Server) resolveManifest(w http.ResponseWriter, r *http.Request) {
	streamURL := r.URL.Query().Get("streamUrl")
	if streamURL == "" {
		writeError(w, apperr.New(apperr.KindInvalidInput, "missing streamUrl parameter"))
		return
	}
	m, err := s.resolver.Resolve(r.Context(), streamURL)
	if s.metrics != nil {
		s.metrics.ObserveManifest(err)
	}
	if err != nil {
		s.log.Warn("resolve manifest", "stream_url", streamURL, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// events handles GET /api/events: an SSE stream of login events. Each event
// is written as "event: <type>" with the JSON body in "data:".
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to an HTTP status and a JSON body of shape
// {"error": "...", "kind": "...", "code": N}.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindNotAuthenticated, apperr.KindSessionExpired:
		status = http.StatusUnauthorized
	case apperr.KindUpstream, apperr.KindApplication:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"kind":  kind.String(),
		"code":  apperr.CodeOf(err),
	})
}
