package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Accounts registers callers on first sight.
type Accounts interface {
	EnsureAccount(ctx context.Context, username string) error
}

// KeyIssuer issues handshake keys for linking a chat.
type KeyIssuer interface {
	GenerateKey(ctx context.Context, identity string) (string, error)
}

// Deps bundles the services behind the HTTP API.
type Deps struct {
	Tasks    *service.TaskService
	Board    *service.BoardService
	Export   *service.ExportService
	Accounts Accounts
	Bindings domain.BindingStore
	Keys     KeyIssuer
}

// HTTPServer exposes the task API.
type HTTPServer struct {
	cfg      config.APIConfig
	tasks    *service.TaskService
	board    *service.BoardService
	export   *service.ExportService
	accounts Accounts
	bindings domain.BindingStore
	keys     KeyIssuer
	limiter  *rateLimiter
	router   chi.Router
	server   *http.Server
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = "X-User"
	}

	srv := &HTTPServer{
		cfg:      cfg,
		tasks:    deps.Tasks,
		board:    deps.Board,
		export:   deps.Export,
		accounts: deps.Accounts,
		bindings: deps.Bindings,
		keys:     deps.Keys,
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(srv.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(srv.requireIdentity)

		r.Get("/tasks", srv.handleListTasks)
		r.Post("/tasks", srv.handleCreateTask)
		r.Get("/tasks/export", srv.handleExport)
		r.Get("/tasks/{id}", srv.handleGetTask)
		r.Put("/tasks/{id}", srv.handleUpdateTask)
		r.Delete("/tasks/{id}", srv.handleDeleteTask)

		r.Get("/telegram/key", srv.handleTelegramKey)
		r.Post("/telegram/summary", srv.handleTelegramSummary)
	})

	srv.router = r
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
