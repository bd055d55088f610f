package app

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultDedupTTL is the sender cooldown window.
const DefaultDedupTTL = 60_000 * time.Millisecond

// DedupGuard prevents a sender from triggering more than one submission
// batch within the cooldown window. Keys are sender national numbers. It is
// the only state shared across requests.
type DedupGuard struct {
	cache *ttlcache.Cache[string, time.Time]
	ttl   time.Duration
}

func NewDedupGuard(ttl time.Duration) *DedupGuard {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	cache := ttlcache.New[string, time.Time](
		ttlcache.WithTTL[string, time.Time](ttl),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go cache.Start()
	return &DedupGuard{cache: cache, ttl: ttl}
}

// CheckAndRecord reports whether a live entry exists for key, recording one
// atomically when it does not. The single GetOrSet closes the window where
// two near-simultaneous requests from the same sender both pass the check.
func (g *DedupGuard) CheckAndRecord(key string) bool {
	_, existed := g.cache.GetOrSet(key, time.Now(), ttlcache.WithTTL[string, time.Time](g.ttl))
	return existed
}

// TTL returns the cooldown window, surfaced to rejected senders as
// Retry-After.
func (g *DedupGuard) TTL() time.Duration {
	return g.ttl
}

// Stop halts background expiry. For tests and shutdown.
func (g *DedupGuard) Stop() {
	g.cache.Stop()
}
