// Package server exposes the HTTP API: schedule management, run-state
// commands, the live event stream, and the chat webhook.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cueline/internal/core/eventbus"
	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/runsheet"
	"github.com/colonyops/cueline/internal/metrics"
)

// Deps bundles everything the API surface needs.
type Deps struct {
	Runsheet *runsheet.Service
	Members  roster.Store
	Bus      *eventbus.EventBus
	Metrics  *metrics.Collector
	Webhook  http.Handler
	Log      zerolog.Logger
}

// Server is the API HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	log        zerolog.Logger
}

// New wires the route table and returns an unstarted server. Webhook may be
// nil when the chat channel is not configured.
func New(addr string, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Handler:           newMux(deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr: addr,
		log:  deps.Log,
	}
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	s.log.Info().Str("addr", listener.Addr().String()).Msg("starting api server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("api server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}
