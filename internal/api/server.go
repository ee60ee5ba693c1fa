package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, handler *Handler) *Server {
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Resolution
		r.Post("/resolve/routing", handler.ResolveRouting)
		r.Post("/resolve/commission", handler.ResolveCommission)
		r.Post("/resolve/settlement", handler.ResolveSettlement)

		// Dispatch
		r.Post("/dispatch", handler.Dispatch)

		// Decision retrieval
		r.Get("/decisions/{id}", handler.GetDecision)

		// Routing rule management
		r.Get("/rules/routing", handler.ListRoutingRules)
		r.Get("/rules/routing/{id}", handler.GetRoutingRule)
		r.Post("/rules/routing", handler.CreateRoutingRule)
		r.Delete("/rules/routing/{id}", handler.DeleteRoutingRule)

		// Commission config management
		r.Get("/rules/commission", handler.ListCommissionConfigs)
		r.Get("/rules/commission/{id}", handler.GetCommissionConfig)
		r.Post("/rules/commission", handler.CreateCommissionConfig)
		r.Delete("/rules/commission/{id}", handler.DeleteCommissionConfig)

		// Dispatch router management
		r.Get("/routers", handler.ListDispatchRouters)
		r.Get("/routers/{id}", handler.GetDispatchRouter)
		r.Post("/routers", handler.CreateDispatchRouter)
		r.Delete("/routers/{id}", handler.DeleteDispatchRouter)

		// Dispatch strategy management, keyed by code
		r.Get("/strategies", handler.ListDispatchStrategies)
		r.Get("/strategies/{code}", handler.GetDispatchStrategy)
		r.Post("/strategies", handler.CreateDispatchStrategy)
		r.Delete("/strategies/{code}", handler.DeleteDispatchStrategy)

		// Contract management, keyed by subject
		r.Get("/contracts/{subjectId}", handler.GetContract)
		r.Put("/contracts/{subjectId}", handler.SaveContract)
		r.Delete("/contracts/{subjectId}", handler.DeleteContract)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
