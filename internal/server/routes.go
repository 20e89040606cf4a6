// Package server wires HTTP handlers into a ServeMux for the relay
// application via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all application routes.
// Static assets and the WebSocket endpoint share the root so browsers can
// connect to the page's own origin.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.RootHandler(NewStaticHandler(s.cfg.StaticDir, s.log)))
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle(s.cfg.MetricsPath, s.metricsHandler())
	return mux
}
