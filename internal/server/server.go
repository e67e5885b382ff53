package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insightctl/retail-insights/internal/config"
	"github.com/insightctl/retail-insights/internal/pipeline"
	"github.com/insightctl/retail-insights/internal/vectorstore"
)

// Pipeline is the question-answering surface the server exposes.
type Pipeline interface {
	Process(ctx context.Context, question string) pipeline.Response
	GenerateOverallSummary(ctx context.Context) string
}

// Searcher is the optional semantic-search surface.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.Result, error)
}

type Server struct {
	cfg      config.ServerConfig
	server   *http.Server
	pipeline Pipeline
	search   Searcher
}

func New(cfg config.Config, p Pipeline, search Searcher) *Server {
	s := &Server{
		cfg:      cfg.Server,
		pipeline: p,
		search:   search,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/ask", s.loggingMiddleware(s.handleAsk))
	mux.HandleFunc("/api/v1/summary", s.loggingMiddleware(s.handleSummary))
	mux.HandleFunc("/api/v1/search", s.loggingMiddleware(s.handleSearch))
	mux.HandleFunc("/api/v1/health", s.loggingMiddleware(s.handleHealth))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w}
		next(rw, r)

		slog.Info("HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	}
}

func (s *Server) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("starting shutdown", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}
