// Package dedup suppresses repeated emission of the same (symbol, side)
// pair inside a rolling window. Price and targets are deliberately not part
// of the key: the feed re-broadcasts the same tip with drifting prices, and
// those are duplicates for our purposes.
package dedup

import (
	"sync"
	"time"

	"github.com/aegislabs/signalbridge/internal/signal"
)

type Cache struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	seen    map[string]time.Time
}

func New(window time.Duration, maxKeys int) *Cache {
	return &Cache{
		window:  window,
		maxKeys: maxKeys,
		seen:    map[string]time.Time{},
	}
}

// ShouldProcess reports whether a (symbol, side) pair is new within the
// window. A true result records the observation; expired entries are swept
// lazily once the cache grows past maxKeys, never on a timer.
func (c *Cache) ShouldProcess(symbol string, side signal.Side, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := symbol + "_" + string(side)
	if last, ok := c.seen[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.seen[key] = now

	if len(c.seen) > c.maxKeys {
		for k, v := range c.seen {
			if now.Sub(v) > c.window {
				delete(c.seen, k)
			}
		}
	}
	return true
}

// Len reports the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
