package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/mutbatch/pkg/log"
)

const metricsPath = "/metrics"

// shutdownTimeout bounds how long in-flight scrapes may finish after ctx ends.
const shutdownTimeout = 5 * time.Second

// Handler serves /metrics from gatherer and a liveness check on /healthz.
// A nil gatherer uses the default Prometheus registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// MetricsServer exposes process metrics over HTTP.
type MetricsServer struct {
	srv    *http.Server
	logger log.Logger
}

// NewMetricsServer creates a server for the default registry.
func NewMetricsServer(logger log.Logger) *MetricsServer {
	return &MetricsServer{
		srv: &http.Server{
			Handler:           Handler(nil),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log.OrNoop(logger),
	}
}

// Serve accepts scrapes on lis until ctx is cancelled, then shuts down.
func (s *MetricsServer) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(lis)
	}()
	s.logger.Info("metrics server listening", log.String("addr", lis.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("metrics server shutdown", log.Err(err))
		return err
	}
	<-errCh
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *MetricsServer) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}
