// Package relay implements the signaling core: a registry of connected peers,
// roster broadcasts on membership changes, and unicast relay of envelopes
// addressed by session identifier.
//
// The package is transport agnostic. Connections are represented by the Peer
// interface; internal/server adapts WebSocket connections to it.
package relay
