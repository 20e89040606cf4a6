package server

import (
	"sync"
	"time"

	"github.com/Tyrowin/signalrelay/internal/relay"
)

// tokenBucket throttles the frames one connection may hand to the hub.
// It starts full, refills continuously at Burst tokens per RefillInterval,
// and reports each rejected frame to the observer.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	burst    float64
	perSec   float64
	last     time.Time
	clock    func() time.Time
	observer relay.Observer
	rejected uint64
}

func newTokenBucket(cfg RateLimitConfig, observer relay.Observer) *tokenBucket {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if observer == nil {
		observer = relay.NopObserver{}
	}

	return &tokenBucket{
		tokens:   float64(cfg.Burst),
		burst:    float64(cfg.Burst),
		perSec:   float64(cfg.Burst) / cfg.RefillInterval.Seconds(),
		last:     time.Now(),
		clock:    time.Now,
		observer: observer,
	}
}

// take consumes one token. It returns false, and records a rate-limited
// drop, when the bucket is empty.
func (b *tokenBucket) take() bool {
	b.mu.Lock()
	b.refill(b.clock())
	ok := b.tokens >= 1
	if ok {
		b.tokens--
	} else {
		b.rejected++
	}
	b.mu.Unlock()

	if !ok {
		b.observer.Dropped(relay.DropRateLimited)
	}
	return ok
}

func (b *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.last)
	b.last = now
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() * b.perSec
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
}

// Rejected returns how many frames the bucket has refused.
func (b *tokenBucket) Rejected() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}
