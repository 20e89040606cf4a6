package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Tyrowin/signalrelay/internal/relay"
)

func TestCollectorCounts(t *testing.T) {
	connected := 2
	c := NewCollector(func() int { return connected })

	c.Joined()
	c.Joined()
	c.Joined()
	c.Left()
	c.Relayed()
	c.Dropped(relay.DropUnknownTarget)
	c.Dropped(relay.DropUnknownTarget)
	c.Dropped(relay.DropMalformed)
	c.RosterBroadcast(2)

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	expected := `
# HELP signalrelay_clients_connected Number of currently registered clients
# TYPE signalrelay_clients_connected gauge
signalrelay_clients_connected 2
# HELP signalrelay_joins_total Total number of clients that completed registration
# TYPE signalrelay_joins_total counter
signalrelay_joins_total 3
# HELP signalrelay_leaves_total Total number of clients removed from the registry
# TYPE signalrelay_leaves_total counter
signalrelay_leaves_total 1
# HELP signalrelay_messages_dropped_total Total number of inbound messages not delivered, by reason
# TYPE signalrelay_messages_dropped_total counter
signalrelay_messages_dropped_total{reason="malformed"} 1
signalrelay_messages_dropped_total{reason="unknown_target"} 2
# HELP signalrelay_messages_relayed_total Total number of envelopes delivered to a target client
# TYPE signalrelay_messages_relayed_total counter
signalrelay_messages_relayed_total 1
# HELP signalrelay_roster_broadcasts_total Total number of device list broadcasts
# TYPE signalrelay_roster_broadcasts_total counter
signalrelay_roster_broadcasts_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

type nullPeer struct{ addr string }

func (nullPeer) Send([]byte) bool { return true }
func (nullPeer) Close() error     { return nil }

func TestCollectorWiredToHub(t *testing.T) {
	var hub *relay.Hub
	c := NewCollector(func() int { return hub.Registry().Len() })
	hub = relay.NewHub(relay.WithObserver(c))

	p := &nullPeer{}
	if _, err := hub.Join(p, "127.0.0.1:1"); err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Join(&nullPeer{}, "127.0.0.1:2"); err != nil {
		t.Fatal(err)
	}
	hub.Leave(p)

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	expected := `
# HELP signalrelay_clients_connected Number of currently registered clients
# TYPE signalrelay_clients_connected gauge
signalrelay_clients_connected 1
# HELP signalrelay_roster_broadcasts_total Total number of device list broadcasts
# TYPE signalrelay_roster_broadcasts_total counter
signalrelay_roster_broadcasts_total 3
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"signalrelay_clients_connected", "signalrelay_roster_broadcasts_total")
	if err != nil {
		t.Error(err)
	}
}
