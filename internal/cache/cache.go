// Package cache holds the most recent accepted glucose reading.
//
// The cache is a single slot with monotonic acceptance: a candidate
// replaces the current reading only when its timestamp is strictly newer.
// The share service frequently returns the same reading across several
// polls, and out-of-order responses must never roll the display back.
package cache

import (
	"sync"
	"time"

	"github.com/mrcode/dexshare-widget/internal/glucose"
)

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	reading *glucose.Reading
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Accept offers a candidate reading. It is stored and true is returned
// only when the candidate's timestamp is strictly newer than the current
// reading's; duplicates (equal timestamps) and older readings are
// rejected. An empty cache accepts any reading.
func (c *Cache) Accept(r glucose.Reading) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reading != nil && !r.Timestamp.After(c.reading.Timestamp) {
		return false
	}
	stored := r
	c.reading = &stored
	return true
}

// Current returns the cached reading, if any.
func (c *Cache) Current() (glucose.Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.reading == nil {
		return glucose.Reading{}, false
	}
	return *c.reading, true
}

// StalenessOf classifies the cached reading's age as seen at now. The
// second return is false when the cache is empty.
func (c *Cache) StalenessOf(now time.Time) (glucose.Staleness, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.reading == nil {
		return "", false
	}
	return glucose.StalenessOf(c.reading.Timestamp, now), true
}
