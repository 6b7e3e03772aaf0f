package infra

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
)

// HTTPServer serves the API with the configured timeouts and routes the
// server's own error log through zerolog.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer creates a configured HTTP server instance.
func NewHTTPServer(cfg *Config, handler http.Handler, logger *Logger) *HTTPServer {
	if logger == nil {
		logger = DiscardLogger()
	}
	errLog := logger.With().Str("component", "http_server").Logger()
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ErrorLog:          stdlog.New(errLog, "", 0),
	}}
}

// Listen binds the configured address. Start calls it when needed.
func (s *HTTPServer) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *HTTPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Start serves in the current goroutine until Shutdown, after which it returns nil.
func (s *HTTPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
