// Package cache implements the TTL-keyed record cache the stub-resolver
// proxy consults before issuing an upstream DoH query, grounded on
// doh_proxy::cache_insert/cache_lookup in the original proxy.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/sebkrahmer/harddns-go/internal/doh"
)

// Key identifies a cached answer set: lowercased fqdn plus query type.
type Key struct {
	FQDN  string
	QType uint16
}

// entry holds one cached answer set and its absolute expiry time, computed
// as now + min(TTL) over the answer set's non-synthetic records -
// cache_insert's "min_ttl" loop, skipping entries whose name begins with
// the NSS marker tag.
type entry struct {
	records []doh.Record
	expires time.Time
}

// Cache is safe for concurrent use, though the stub-resolver proxy itself
// is single-threaded (see internal/proxy); concurrent safety matters for
// the NSS adaptor, which may share a Cache with a running proxy process in
// future wiring.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]entry)}
}

// Insert stores records under key, replacing any existing entry for that
// key unconditionally - cache_insert always erases the prior entry before
// inserting, so there is no "extend" mode in the original behaviour; the
// extendPrevious parameter lets a caller opt into the Open-Question
// resolution from spec.md §9 (extend rather than clobber a still-valid
// entry) without changing the default.
func (c *Cache) Insert(key Key, records []doh.Record, extendPrevious bool) {
	now := time.Now()

	var minTTL uint32 = 0xffffffff
	for _, r := range records {
		if r.Synthetic {
			continue
		}
		if r.TTL < minTTL {
			minTTL = r.TTL
		}
	}
	if minTTL == 0xffffffff {
		minTTL = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expires := now.Add(time.Duration(minTTL) * time.Second)
	if extendPrevious {
		if prev, ok := c.entries[key]; ok && prev.expires.After(expires) {
			expires = prev.expires
		}
	}
	c.entries[key] = entry{records: records, expires: expires}
}

// Get returns a copy of the cached records for key with each record's TTL
// rewritten to the residual seconds until expiry, plus whether the lookup
// hit. A hit on an expired entry is treated as a miss and the entry is
// erased as a side effect, matching cache_lookup's "valid_until <= now"
// eviction-on-lookup behavior.
func (c *Cache) Get(key Key) ([]doh.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if !e.expires.After(now) {
		delete(c.entries, key)
		return nil, false
	}

	residual := uint32(e.expires.Sub(now).Seconds())
	out := make([]doh.Record, len(e.records))
	for i, r := range e.records {
		r.TTL = residual
		out[i] = r
	}
	return out, true
}

// Prune removes every entry whose expiry has passed, returning the count
// removed. Intended to run off a ticker (see internal/constants'
// DefaultCacheCleanInterval) so a proxy that runs for a long time without
// repeat lookups for a given name doesn't hold stale entries forever.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if !e.expires.After(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Name implements internal/reporter.Reporter.
func (c *Cache) Name() string { return "cache" }

// Report implements internal/reporter.Reporter; resetCounters is accepted
// for interface compatibility but the cache has no cumulative counters to
// reset, only current size.
func (c *Cache) Report(resetCounters bool) string {
	return "cache entries=" + strconv.Itoa(c.Len())
}
