package relay

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DropReason labels why a message was not delivered.
type DropReason string

// Drop reasons reported to the Observer.
const (
	DropUntargeted    DropReason = "untargeted"
	DropUnknownTarget DropReason = "unknown_target"
	DropUnwritable    DropReason = "unwritable"
	DropUnknownSender DropReason = "unknown_sender"
	DropMalformed     DropReason = "malformed"
	DropRateLimited   DropReason = "rate_limited"
)

// Observer receives relay activity, typically for metrics.
type Observer interface {
	Joined()
	Left()
	Relayed()
	Dropped(reason DropReason)
	RosterBroadcast(recipients int)
}

// NopObserver discards all activity.
type NopObserver struct{}

func (NopObserver) Joined()             {}
func (NopObserver) Left()               {}
func (NopObserver) Relayed()            {}
func (NopObserver) Dropped(DropReason)  {}
func (NopObserver) RosterBroadcast(int) {}

// Option configures a Hub.
type Option func(*Hub)

// WithIDGenerator replaces NewID.
func WithIDGenerator(gen IDGenerator) Option {
	return func(h *Hub) {
		if gen != nil {
			h.newID = gen
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithLogger sets the logger used for relay events.
func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// Hub ties the registry to roster broadcasts and message relay. Registry
// reads happen under the registry lock; sends happen outside it.
type Hub struct {
	registry *Registry
	newID    IDGenerator
	observer Observer
	log      *zap.Logger

	// rosterMu orders roster fan-out so the last roster a peer receives is
	// never older than the last membership change.
	rosterMu sync.Mutex
}

// NewHub creates a Hub with an empty registry.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		registry: NewRegistry(),
		newID:    NewID,
		observer: NopObserver{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the hub's registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Join registers peer under a fresh identifier, sends it the init message and
// broadcasts the roster. On ErrDuplicateConnection nothing is sent.
func (h *Hub) Join(peer Peer, remoteAddr string) (ClientRecord, error) {
	record := ClientRecord{ID: h.newID(), RemoteAddr: remoteAddr}
	initMsg, err := json.Marshal(InitMessage{Type: TypeInit, ID: record.ID})
	if err != nil {
		return ClientRecord{}, fmt.Errorf("encode init message: %w", err)
	}

	// No roster may reach the peer between registration and its init message.
	h.rosterMu.Lock()
	if err := h.registry.Register(peer, record); err != nil {
		h.rosterMu.Unlock()
		return ClientRecord{}, err
	}
	delivered := peer.Send(initMsg)
	h.rosterMu.Unlock()

	h.observer.Joined()
	h.log.Info("Client connected", zap.String("id", record.ID), zap.String("addr", remoteAddr))
	if !delivered {
		h.log.Debug("Init message not delivered", zap.String("id", record.ID))
	}

	h.BroadcastRoster()
	return record, nil
}

// Leave removes peer and broadcasts the roster. Leaving an unregistered peer
// is a no-op.
func (h *Hub) Leave(peer Peer) {
	record, ok := h.registry.Unregister(peer)
	if !ok {
		return
	}
	h.observer.Left()
	h.log.Info("Client disconnected", zap.String("id", record.ID), zap.String("addr", record.RemoteAddr))
	h.BroadcastRoster()
}

// Dispatch parses an inbound frame from sender and relays it. Malformed
// frames return ErrMalformedMessage and leave the session untouched.
func (h *Hub) Dispatch(sender Peer, raw []byte) error {
	env, err := ParseEnvelope(raw)
	if err != nil {
		h.observer.Dropped(DropMalformed)
		return err
	}
	h.Relay(sender, env)
	return nil
}

// Relay forwards env to the peer named by its targetId with senderId set to
// the sender's identifier. Delivery is best effort: untargeted messages,
// unknown targets and unwritable targets are dropped silently.
func (h *Hub) Relay(sender Peer, env *Envelope) {
	targetID := env.TargetID()
	if targetID == "" {
		h.drop(DropUntargeted, "", targetID)
		return
	}

	from, ok := h.registry.Lookup(sender)
	if !ok {
		h.drop(DropUnknownSender, "", targetID)
		return
	}

	target, ok := h.registry.LookupByID(targetID)
	if !ok {
		h.drop(DropUnknownTarget, from.ID, targetID)
		return
	}

	payload, err := env.stamp(from.ID)
	if err != nil {
		h.log.Warn("Failed to encode relayed message", zap.String("sender", from.ID), zap.Error(err))
		return
	}

	if !target.Send(payload) {
		h.drop(DropUnwritable, from.ID, targetID)
		return
	}
	h.observer.Relayed()
}

func (h *Hub) drop(reason DropReason, senderID, targetID string) {
	h.observer.Dropped(reason)
	h.log.Debug("Message dropped",
		zap.String("reason", string(reason)),
		zap.String("sender", senderID),
		zap.String("target", targetID))
}

// BroadcastRoster sends the full device list to every registered peer.
// Peers that are not writable are skipped.
func (h *Hub) BroadcastRoster() {
	h.rosterMu.Lock()
	defer h.rosterMu.Unlock()

	members := h.registry.Snapshot()
	devices := make([]DeviceListEntry, 0, len(members))
	for _, m := range members {
		devices = append(devices, DeviceListEntry{ID: m.Record.ID, Name: DeviceName(m.Record.ID)})
	}

	payload, err := json.Marshal(DevicesMessage{Type: TypeDevices, Devices: devices})
	if err != nil {
		h.log.Error("Failed to encode device list", zap.Error(err))
		return
	}

	sent := 0
	for _, m := range members {
		if m.Peer.Send(payload) {
			sent++
		}
	}
	h.observer.RosterBroadcast(sent)
	h.log.Debug("Roster broadcast", zap.Int("devices", len(devices)), zap.Int("recipients", sent))
}
