package services

import (
	"context"
	"sync"

	"github.com/aristath/portfoliowidget/internal/domain"
)

type rateKey struct {
	base  string
	quote string
}

type rateEntry struct {
	done chan struct{}
	rate domain.ExchangeRate
	err  error
}

// rateCache memoizes rate lookups, failures included, for the lifetime of a
// single pass. Concurrent lookups of the same pair wait for the first one.
type rateCache struct {
	mu      sync.Mutex
	entries map[rateKey]*rateEntry
}

func newRateCache() *rateCache {
	return &rateCache{entries: make(map[rateKey]*rateEntry)}
}

// reserve returns the entry for key and whether the caller owns filling it
func (c *rateCache) reserve(key rateKey) (*rateEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		return entry, false
	}
	entry := &rateEntry{done: make(chan struct{})}
	c.entries[key] = entry
	return entry, true
}

func (c *rateCache) complete(entry *rateEntry, rate domain.ExchangeRate, err error) {
	entry.rate = rate
	entry.err = err
	close(entry.done)
}

func (c *rateCache) wait(ctx context.Context, entry *rateEntry) (domain.ExchangeRate, error) {
	select {
	case <-entry.done:
		return entry.rate, entry.err
	case <-ctx.Done():
		return domain.ExchangeRate{}, ctx.Err()
	}
}

// resolved lists every successfully resolved rate
func (c *rateCache) resolved() []domain.ExchangeRate {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ExchangeRate, 0, len(c.entries))
	for _, entry := range c.entries {
		select {
		case <-entry.done:
			if entry.err == nil {
				out = append(out, entry.rate)
			}
		default:
		}
	}
	return out
}
