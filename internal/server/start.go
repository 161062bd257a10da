package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server until an interrupt or terminate signal, then
// shuts the pieces down in dependency order: stop accepting requests, tear
// down live sockets, stop the presence machinery, close the database.
func (s *Server) Start(addr string) {
	go func() {
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.E.Shutdown(ctx); err != nil {
		s.E.Logger.Error(err)
	}
	s.bridge.Close()
	s.aggregator.Shutdown()
	if err := s.queue.Close(); err != nil {
		s.E.Logger.Error(err)
	}
	s.DB.Close(ctx)
}
