package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/tenderscan/internal/model"
	"github.com/nao1215/tenderscan/internal/pipeline"
)

// Server defaults.
const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 1000
	MaxQuota         = 1000

	shutdownTimeout = 10 * time.Second
)

// CrawlErrorHeader carries the crawl error of a partial result.
const CrawlErrorHeader = "X-Crawl-Error"

// RunStore is the part of the history database the API reads and writes.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
}

// Server serves the tender API.
type Server struct {
	crawler    pipeline.Crawler
	store      RunStore
	baseURL    string
	defaultMax int
	logger     *slog.Logger
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the run history routes and persists API crawls.
func WithStore(store RunStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithDefaultMax sets the quota used when a request omits max.
func WithDefaultMax(n int) Option {
	return func(s *Server) {
		s.defaultMax = n
	}
}

// WithBaseURL sets the site recorded on runs started by the API.
func WithBaseURL(baseURL string) Option {
	return func(s *Server) {
		s.baseURL = baseURL
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server that crawls with c.
func New(c pipeline.Crawler, opts ...Option) *Server {
	s := &Server{
		crawler:    c,
		defaultMax: 5,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux = s.routes()
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /endpoint/tenders", s.handleTenders)
	mux.HandleFunc("GET /endpoint/runs", s.handleRuns)
	mux.HandleFunc("GET /endpoint/runs/{id}", s.handleRun)
	return mux
}

// Handler returns the routes wrapped in the logging and recovery middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.recoveryMiddleware(h)
	h = s.loggingMiddleware(h)
	return h
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Crawls run inside requests, so no write timeout is set.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
