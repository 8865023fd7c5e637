// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"net/http"
	"time"

	"listgate/internal/controller/handlers"
	"listgate/internal/controller/middleware"
)

// Options configures the controller server.
type Options struct {
	Addr            string
	OperatorToken   string
	IngestRateLimit float64 // requests per second per source, 0 = unlimited
	MetricsHandler  http.Handler
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(opts Options, deps handlers.Deps) *Server {
	h := handlers.New(deps)
	authMW := middleware.RequireOperatorAuth(opts.OperatorToken)
	rateMW := middleware.RateLimitMiddleware(opts.IngestRateLimit, int(opts.IngestRateLimit)*2)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	// Read-only status endpoints
	mux.HandleFunc("GET /api/engine/status", h.EngineStatus)
	mux.HandleFunc("GET /api/engine/throttle/status", h.ThrottleStatus)
	mux.HandleFunc("GET /api/engine/killswitch", h.GetKillSwitch)

	// Operator mutations
	mux.Handle("POST /api/engine/threshold/reset", authMW(http.HandlerFunc(h.ResetThreshold)))
	mux.Handle("POST /api/engine/throttle/config", authMW(http.HandlerFunc(h.UpdateThrottleConfig)))
	mux.Handle("POST /api/engine/killswitch", authMW(http.HandlerFunc(h.SetKillSwitch)))

	// Ingestion endpoints; these take supplier feeds, so they are
	// rate limited per source on top of the operator token.
	mux.Handle("POST /api/engine/ingest", authMW(rateMW(http.HandlerFunc(h.IngestFeed))))
	mux.Handle("POST /api/engine/jobs", authMW(rateMW(http.HandlerFunc(h.EnqueueJob))))

	// Sales feedback from the storefront webhook
	mux.Handle("POST /api/feedback/sale", authMW(http.HandlerFunc(h.SaleFeedback)))

	return &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
