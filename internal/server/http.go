package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ninacare/nina-front/internal/log"
)

// HTTPServer wraps http.Server with sane timeouts and graceful shutdown
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer creates the listener for the given address and handler
func NewHTTPServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// Callback handlers block up to the configured timeout, so the
			// write timeout has to stay comfortably above it
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start runs the server until Shutdown is called
func (s *HTTPServer) Start() error {
	log.LogInfoWithFields("http", "Listening", map[string]any{"addr": s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
