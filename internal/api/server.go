// Package api provides the HTTP REST API and WebSocket server for Boom
// Gate Core.
//
// It exposes the gate command vocabulary, status queries and the
// operation audit trail over HTTP, and the real-time control channel
// plus snapshot broadcast over WebSocket.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/boomgate-core/internal/audit"
	"github.com/nerrad567/boomgate-core/internal/dispatch"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/config"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/boomgate-core/internal/status"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Dispatcher  *dispatch.Dispatcher
	Broadcaster *status.Broadcaster
	AuditRepo   audit.Repository // optional; operations endpoint 404s without it
	Version     string
}

// Server is the HTTP API server for Boom Gate Core.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// control channel. The server is created with New() and started with
// Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	dispatcher  *dispatch.Dispatcher
	broadcaster *status.Broadcaster
	auditRepo   audit.Repository
	version     string

	server *http.Server

	// clients tracks open WebSocket connections for shutdown.
	clients   map[*wsClient]struct{}
	clientsMu sync.Mutex
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, dispatcher, broadcaster)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Broadcaster == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		dispatcher:  deps.Dispatcher,
		broadcaster: deps.Broadcaster,
		auditRepo:   deps.AuditRepo,
		version:     deps.Version,
		clients:     make(map[*wsClient]struct{}),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.buildRouter(),
		ReadTimeout:  time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	return s, nil
}

// Start begins serving requests. It returns once the listener is
// running; serving continues on a background goroutine until Close or
// context cancellation.
//
// Parameters:
//   - ctx: Cancelled to stop the server
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.logger.Info("api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Close()
	}()
}

// Close gracefully shuts the server down: WebSocket clients are
// disconnected, then in-flight HTTP requests get the shutdown grace
// period.
func (s *Server) Close() {
	s.closeAllClients()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("api server shutdown incomplete", "error", err)
	}
}

// registerClient adds a WebSocket client to the shutdown set.
func (s *Server) registerClient(c *wsClient) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("websocket client connected", "clients", count)
}

// unregisterClient removes a WebSocket client from the shutdown set.
func (s *Server) unregisterClient(c *wsClient) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("websocket client disconnected", "clients", count)
}

// closeAllClients disconnects every WebSocket client.
func (s *Server) closeAllClients() {
	s.clientsMu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
}
