package relay

import (
	"errors"
	"sync"
)

// ErrDuplicateConnection is returned when a peer is registered twice.
var ErrDuplicateConnection = errors.New("relay: connection already registered")

// Peer is the outbound side of one client connection.
// Send must not block; it reports false when the peer is not writable.
type Peer interface {
	Send(payload []byte) bool
	Close() error
}

// ClientRecord describes a registered client. It is immutable once created.
type ClientRecord struct {
	ID         string
	RemoteAddr string
}

// Member pairs a registered peer with its record in a registry snapshot.
type Member struct {
	Peer   Peer
	Record ClientRecord
}

// Registry is the authoritative set of connected clients. All methods are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	order   []Peer
	records map[Peer]ClientRecord
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[Peer]ClientRecord),
	}
}

// Register adds peer with the given record.
func (r *Registry) Register(peer Peer, record ClientRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[peer]; exists {
		return ErrDuplicateConnection
	}
	r.records[peer] = record
	r.order = append(r.order, peer)
	return nil
}

// Unregister removes peer and returns its record. Removing an absent peer
// is not an error; ok is false.
func (r *Registry) Unregister(peer Peer) (record ClientRecord, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok = r.records[peer]
	if !ok {
		return ClientRecord{}, false
	}
	delete(r.records, peer)
	for i, p := range r.order {
		if p == peer {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return record, true
}

// Lookup returns the record registered for peer.
func (r *Registry) Lookup(peer Peer) (ClientRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[peer]
	return record, ok
}

// LookupByID returns the earliest registered peer carrying id.
func (r *Registry) LookupByID(id string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, peer := range r.order {
		if r.records[peer].ID == id {
			return peer, true
		}
	}
	return nil, false
}

// Snapshot returns the current members in join order. The slice is a copy
// and may be used after the registry changes.
func (r *Registry) Snapshot() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.order))
	for _, peer := range r.order {
		members = append(members, Member{Peer: peer, Record: r.records[peer]})
	}
	return members
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
