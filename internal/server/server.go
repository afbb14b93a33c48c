// Package server exposes the triage pipeline over HTTP: the decision
// endpoint, the feature route groups, and a WebSocket chat surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/example/triage/internal/agentqueue"
	"github.com/example/triage/internal/decisionlog"
	"github.com/example/triage/internal/feedback"
	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/respond"
	"github.com/example/triage/internal/triage"
)

// Config holds server configuration.
type Config struct {
	Port int
	// AllowedOrigins is the CORS allow list. Empty means localhost only.
	AllowedOrigins []string
}

// Deps are the collaborators the server routes requests to. Generator and
// Index may be nil: a nil Generator disables reply drafting, a nil Index
// makes the health check report zero tickets.
type Deps struct {
	Orchestrator  *triage.Orchestrator
	Generator     *respond.Generator
	Index         *index.TicketIndex
	Engine        *policy.Engine
	Policies      *policy.Store
	Decisions     *decisionlog.Store
	Labels        *feedback.LabelStore
	Feedback      *feedback.Service
	Queue         *agentqueue.Store
	Notifications *notify.Store
	Dispatcher    *notify.Dispatcher
}

// Server is the triage HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies wired.
func New(cfg Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/triage", s.handleTriage)
	r.Get("/ws/chat", s.handleWebSocket)

	policy.RegisterRoutes(r, s.deps.Engine, s.deps.Policies)
	decisionlog.RegisterRoutes(r, s.deps.Decisions)
	feedback.RegisterRoutes(r, s.deps.Feedback, s.deps.Labels, s.deps.Decisions)
	agentqueue.RegisterRoutes(r, s.deps.Queue, s.deps.Labels)
	notify.RegisterRoutes(r, s.deps.Notifications, s.deps.Dispatcher)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tickets := 0
	if s.deps.Index != nil {
		tickets = s.deps.Index.Count()
	}
	current := s.deps.Engine.Current()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"tickets":        tickets,
		"policy_version": current.Version,
		"threshold":      current.Threshold,
	})
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("triage server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}
