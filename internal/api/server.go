// Package api exposes the verification engine over HTTP for the village
// dashboard and the investor console.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/engine"
	"github.com/sansure/trust-cli/internal/ledger"
	"github.com/sansure/trust-cli/internal/monitoring"
	"github.com/sansure/trust-cli/internal/village"
)

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	engine    *engine.Engine
	registry  *village.Registry
	ledger    ledger.Ledger
	collector *monitoring.Collector

	providerName string
}

// Config for the server.
type Config struct {
	Port           int
	AllowedOrigins []string
	Engine         *engine.Engine
	Registry       *village.Registry
	Ledger         ledger.Ledger
	ProviderName   string
}

// New creates a new API server.
func New(cfg Config) *Server {
	s := &Server{
		engine:       cfg.Engine,
		registry:     cfg.Registry,
		ledger:       cfg.Ledger,
		collector:    monitoring.NewCollector(cfg.Ledger, cfg.Engine),
		providerName: cfg.ProviderName,
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.setupRouter(origins)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRouter configures all routes.
func (s *Server) setupRouter(origins []string) {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/vision", s.handleVision)
		r.Post("/collusion", s.handleCollusion)
		r.Post("/investor-signal", s.handleInvestorSignal)
		r.Post("/health-narrative", s.handleHealthNarrative)
		r.Post("/impact", s.handleImpact)

		r.Get("/villages", s.handleListVillages)
		r.Get("/villages/{villageID}", s.handleGetVillage)
		r.Get("/villages/{villageID}/trust", s.handleTrustSignal)
		r.Get("/villages/discrepancies", s.handleODFDiscrepancies)

		r.Get("/ledger", s.handleLedgerQuery)
		r.Get("/ledger/verify", s.handleLedgerVerify)

		r.Get("/metrics", s.handleMetrics)
	})

	s.router = r
}

// Handler returns the configured router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	zap.L().Info("api server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
