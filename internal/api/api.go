// Package api provides the HTTP server and handlers for DietCoach.
//
// It exposes RESTful endpoints for the diet-coach chat pipeline, the
// medication Q&A channel, and summary reports. All /api/v1 routes require a
// bearer JWT; the user id comes from the token, never from the request body.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/summary"
)

// Default server configuration constants
const (
	// DefaultAddr is the default API listen address
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds how long a request may take to arrive
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout bounds slow pipelines; model calls fit well inside it
	DefaultWriteTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// CoachService is the diet-chat pipeline surface the server depends on.
type CoachService interface {
	ProcessMessage(ctx context.Context, userID, content string, persona models.CoachPersona) (*models.ChatReply, error)
	History(userID string, limit int) ([]models.ChatMessage, error)
	ClearHistory(userID string) error
}

// MedicationService is the medication Q&A surface the server depends on.
type MedicationService interface {
	Ask(ctx context.Context, userID, query string, includeHealthContext bool) (*models.MedicationAnswer, error)
	History(userID string, limit int) ([]models.ChatMessage, error)
	ClearHistory(userID string) error
}

// SummaryService is the report surface the server depends on.
type SummaryService interface {
	Today(userID string) (*summary.TodaySummary, error)
	Weekly(userID string) (*summary.WeeklySummary, error)
	Adherence(userID string, days int) (*summary.MedicationAdherence, error)
	Monthly(userID string, year, month int) (*summary.MonthlyReport, error)
}

// Opts holds server configuration applied via functional options.
type Opts struct {
	Addr        string
	JWTSecret   string
	CORSOrigins []string
}

// Option configures the server during construction.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithJWTSecret sets the HS256 secret used to verify bearer tokens.
func WithJWTSecret(secret string) Option {
	return func(o *Opts) { o.JWTSecret = secret }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(o *Opts) { o.CORSOrigins = origins }
}

// Server is the DietCoach HTTP API server.
type Server struct {
	addr        string
	jwtSecret   []byte
	corsOrigins []string

	coach      CoachService
	medication MedicationService
	summaries  SummaryService

	httpServer *http.Server
}

// NewServer creates a server over the given services.
func NewServer(coach CoachService, medication MedicationService, summaries SummaryService, opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret must be provided")
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		addr:        cfg.Addr,
		jwtSecret:   []byte(cfg.JWTSecret),
		corsOrigins: cfg.CORSOrigins,
		coach:       coach,
		medication:  medication,
		summaries:   summaries,
	}
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s, nil
}

// routes builds the chi router with global middleware and all endpoints.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", s.chatMessageHandler)
			r.Get("/history", s.chatHistoryHandler)
			r.Delete("/history", s.chatClearHandler)
		})

		r.Route("/medication", func(r chi.Router) {
			r.Post("/ask", s.medicationAskHandler)
			r.Get("/history", s.medicationHistoryHandler)
			r.Delete("/history", s.medicationClearHandler)
		})

		r.Route("/summary", func(r chi.Router) {
			r.Get("/today", s.summaryTodayHandler)
			r.Get("/weekly", s.summaryWeeklyHandler)
			r.Get("/medication-adherence", s.summaryAdherenceHandler)
			r.Get("/monthly", s.summaryMonthlyHandler)
		})
	})

	return r
}

// Handler exposes the fully wired router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until the context is canceled, then shuts down
// gracefully. It returns the listener error if the server stops on its own.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Start: API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Start: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Start: graceful shutdown failed", "error", err)
		return err
	}
	slog.Info("Server.Start: shutdown complete")
	return nil
}
