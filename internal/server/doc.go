// Package server implements the HTTP and WebSocket surface of the signaling relay.
//
// The implementation is organized into specialized files for configuration,
// clients, routing, static assets, and HTTP handlers. The relay state itself
// lives in internal/relay; a Server owns one relay.Hub and hands it to every
// connection it accepts.
package server
