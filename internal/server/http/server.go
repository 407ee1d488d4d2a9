// Package httpserver provides the HTTP REST API server for the rehabilitation research service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/rehab-research-service/internal/domain"
	"github.com/helixir/rehab-research-service/internal/pipeline"
)

// Searcher resolves a query into article records.
type Searcher interface {
	Run(ctx context.Context, query string, bound int) pipeline.Result
}

// Analyst produces LLM-written research analyses.
type Analyst interface {
	AnalyzeResearch(ctx context.Context, records []domain.ArticleRecord, question string) (string, error)
	SummarizeArticles(ctx context.Context, records []domain.ArticleRecord) (string, error)
	CompareTreatments(ctx context.Context, records []domain.ArticleRecord, treatmentA, treatmentB string) (string, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	searcher   Searcher
	analyst    Analyst
	limits     Limits
	logger     zerolog.Logger
}

// Limits bounds what a request may ask for.
type Limits struct {
	// DefaultResults is used when a search gives no max_results.
	DefaultResults int
	// MaxResults caps max_results.
	MaxResults int
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Limits       Limits
}

func (l *Limits) applyDefaults() {
	if l.MaxResults <= 0 {
		l.MaxResults = 20
	}
	if l.DefaultResults <= 0 || l.DefaultResults > l.MaxResults {
		l.DefaultResults = min(10, l.MaxResults)
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = 1 << 20
	}
}

// NewServer creates a new HTTP server. analyst may be nil, in which case the
// analysis endpoints answer 503.
func NewServer(cfg Config, searcher Searcher, analyst Analyst, logger zerolog.Logger) *Server {
	cfg.Limits.applyDefaults()

	s := &Server{
		searcher: searcher,
		analyst:  analyst,
		limits:   cfg.Limits,
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLoggerMiddleware(s.logger))
	r.Use(jsonContentTypeMiddleware)
	r.Use(maxBodyMiddleware(s.limits.MaxBodyBytes))

	r.Get("/healthz", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Post("/analyze", s.analyze)
		r.Post("/summarize", s.summarize)
		r.Post("/compare", s.compare)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"analysis": s.analyst != nil,
	})
}
