// Package metrics exposes relay activity as Prometheus metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/signalrelay/internal/relay"
)

// Collector implements prometheus.Collector and relay.Observer.
type Collector struct {
	// Connected reports the number of registered clients at scrape time.
	Connected func() int

	clientsConnected *prometheus.Desc
	joinsTotal       *prometheus.Desc
	leavesTotal      *prometheus.Desc
	relayedTotal     *prometheus.Desc
	droppedTotal     *prometheus.Desc
	rostersTotal     *prometheus.Desc

	mu      sync.RWMutex
	joins   float64
	leaves  float64
	relayed float64
	rosters float64
	dropped map[relay.DropReason]float64
}

// NewCollector creates a Collector. connected may be nil.
func NewCollector(connected func() int) *Collector {
	return &Collector{
		Connected: connected,
		clientsConnected: prometheus.NewDesc(
			"signalrelay_clients_connected",
			"Number of currently registered clients",
			nil, nil,
		),
		joinsTotal: prometheus.NewDesc(
			"signalrelay_joins_total",
			"Total number of clients that completed registration",
			nil, nil,
		),
		leavesTotal: prometheus.NewDesc(
			"signalrelay_leaves_total",
			"Total number of clients removed from the registry",
			nil, nil,
		),
		relayedTotal: prometheus.NewDesc(
			"signalrelay_messages_relayed_total",
			"Total number of envelopes delivered to a target client",
			nil, nil,
		),
		droppedTotal: prometheus.NewDesc(
			"signalrelay_messages_dropped_total",
			"Total number of inbound messages not delivered, by reason",
			[]string{"reason"}, nil,
		),
		rostersTotal: prometheus.NewDesc(
			"signalrelay_roster_broadcasts_total",
			"Total number of device list broadcasts",
			nil, nil,
		),
		dropped: make(map[relay.DropReason]float64),
	}
}

// Joined records a registration.
func (c *Collector) Joined() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins++
}

// Left records a removal.
func (c *Collector) Left() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
}

// Relayed records a delivered envelope.
func (c *Collector) Relayed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relayed++
}

// Dropped records an undelivered message.
func (c *Collector) Dropped(reason relay.DropReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[reason]++
}

// RosterBroadcast records a device list fan-out.
func (c *Collector) RosterBroadcast(int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rosters++
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.clientsConnected
	ch <- c.joinsTotal
	ch <- c.leavesTotal
	ch <- c.relayedTotal
	ch <- c.droppedTotal
	ch <- c.rostersTotal
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	connected := 0
	if c.Connected != nil {
		connected = c.Connected()
	}
	ch <- prometheus.MustNewConstMetric(c.clientsConnected, prometheus.GaugeValue, float64(connected))

	c.mu.RLock()
	defer c.mu.RUnlock()

	ch <- prometheus.MustNewConstMetric(c.joinsTotal, prometheus.CounterValue, c.joins)
	ch <- prometheus.MustNewConstMetric(c.leavesTotal, prometheus.CounterValue, c.leaves)
	ch <- prometheus.MustNewConstMetric(c.relayedTotal, prometheus.CounterValue, c.relayed)
	ch <- prometheus.MustNewConstMetric(c.rostersTotal, prometheus.CounterValue, c.rosters)
	for reason, value := range c.dropped {
		ch <- prometheus.MustNewConstMetric(c.droppedTotal, prometheus.CounterValue, value, string(reason))
	}
}
