package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/samvad-hq/samvad-coupon-harvester/internal/logger"
)

const shutdownTimeout = 15 * time.Second

// Server runs the router until its context ends, then shuts down gracefully.
type Server struct {
	srv *http.Server
	log logger.Logger
}

func NewServer(addr string, h http.Handler, log logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      h,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: logger.OrNop(log),
	}
}

// Serve listens on addr and blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("http server listening", "http_addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		s.log.InfoObj("http server stopped", "http_addr", ln.Addr().String())
		return nil
	}
}
