// Package server assembles the relay hub, metrics, and HTTP handlers into a
// single Server value that owns all shared state.
package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Tyrowin/signalrelay/internal/metrics"
	"github.com/Tyrowin/signalrelay/internal/relay"
)

// Server owns the relay hub and everything the HTTP surface needs to reach it.
type Server struct {
	cfg      Config
	log      *zap.Logger
	hub      *relay.Hub
	metrics  *metrics.Collector
	registry *prometheus.Registry
	origins  *originPolicy
	upgrader websocket.Upgrader

	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
	clients  map[*Client]struct{}
}

// Option customizes a Server.
type Option func(*serverOptions)

type serverOptions struct {
	idGenerator relay.IDGenerator
}

// WithIDGenerator replaces the session identifier generator.
func WithIDGenerator(gen relay.IDGenerator) Option {
	return func(o *serverOptions) {
		o.idGenerator = gen
	}
}

// New creates a Server from cfg. A nil cfg uses defaults and a nil logger
// disables logging.
func New(cfg *Config, log *zap.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := *cfg
	c.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	c.Sanitize()

	if log == nil {
		log = zap.NewNop()
	}

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		cfg:      c,
		log:      log,
		registry: prometheus.NewRegistry(),
		origins:  newOriginPolicy(c.AllowedOrigins, log),
		clients:  make(map[*Client]struct{}),
	}

	s.metrics = metrics.NewCollector(func() int {
		return s.hub.Registry().Len()
	})
	s.registry.MustRegister(s.metrics)

	s.hub = relay.NewHub(
		relay.WithLogger(log),
		relay.WithObserver(s.metrics),
		relay.WithIDGenerator(o.idGenerator),
	)

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// Hub returns the relay hub.
func (s *Server) Hub() *relay.Hub {
	return s.hub
}

// serveClient starts the pumps for an upgraded connection and tracks the
// client until its read pump returns. It refuses new clients once shutdown
// has begun.
func (s *Server) serveClient(client *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return false
	}

	s.clients[client] = struct{}{}
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		defer s.forget(client)
		client.readPump()
	}()
	return true
}

func (s *Server) forget(client *Client) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
}

// stop refuses further clients and returns every client started so far,
// including those that have not joined the hub yet.
func (s *Server) stop() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopping = true
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

// metricsHandler serves the server's private Prometheus registry.
func (s *Server) metricsHandler() http.Handler {
	return promhttpHandler(s.registry)
}
