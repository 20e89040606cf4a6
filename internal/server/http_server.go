// Package server constructs and starts the relay HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// Read and write timeouts only bound the HTTP phase; hijacked WebSocket
// connections manage their own deadlines.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ListenAndServe serves the relay on the configured port until the
// returned http.Server is shut down.
func (s *Server) ListenAndServe(httpServer *http.Server) error {
	s.log.Info("Server listening", zap.String("addr", httpServer.Addr))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return server.Shutdown(ctx)
}

// Shutdown stops accepting relay connections, closes every started client
// and waits for their goroutines to finish or the timeout to pass.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.log.Info("Initiating relay shutdown")

	clients := s.stop()
	for _, c := range clients {
		if err := c.Close(); err != nil {
			s.log.Debug("Error closing client", zap.String("addr", c.addr), zap.Error(err))
		}
	}
	s.log.Info("Closed client connections", zap.Int("count", len(clients)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Relay shutdown completed")
		return nil
	case <-time.After(timeout):
		s.log.Warn("Relay shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
