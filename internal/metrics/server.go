package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusServer exposes the default registry over HTTP.
type PrometheusServer struct {
	addr string
	path string
}

// NewPrometheusServer creates an exposition server for the given address
// and path.
func NewPrometheusServer(addr, path string) *PrometheusServer {
	return &PrometheusServer{addr: addr, path: path}
}

// Start serves metrics until the context is cancelled.
func (s *PrometheusServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// DefaultRegisterer returns the process-wide Prometheus registerer.
func DefaultRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
