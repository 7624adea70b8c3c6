package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes /metrics in text exposition format plus a liveness probe.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// NewServer builds the metrics HTTP server on the given port.
func NewServer(port int, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      newRouter(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// newRouter builds the metrics routes.
func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting metrics server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
