package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// httpService runs an http.Server as a supervised service.
type httpService struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// ready receives the bound address once the listener is up.
	ready chan string
}

func newHTTPService(addr string, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) *httpService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &httpService{
		addr:            addr,
		handler:         handler,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With("component", "http"),
	}
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (s *httpService) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if s.ready != nil {
		s.ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", "error", err)
	}
	s.logger.Info("http server stopped")
	return ctx.Err()
}

func (s *httpService) String() string {
	return "http-server"
}
