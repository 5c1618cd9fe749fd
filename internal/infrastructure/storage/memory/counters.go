package memory

import (
	"context"

	"merchledger/internal/core/numerator"
)

// Counters implements numerator.CounterStore.
type Counters struct {
	store *Store
}

var _ numerator.CounterStore = (*Counters)(nil)

// Increment implements numerator.CounterStore.
func (c *Counters) Increment(_ context.Context, counter numerator.Counter) (int64, error) {
	c.store.counterMu.Lock()
	defer c.store.counterMu.Unlock()
	c.store.counters[counter.Key]++
	return c.store.counters[counter.Key], nil
}

// RaiseTo implements numerator.CounterStore.
func (c *Counters) RaiseTo(_ context.Context, counter numerator.Counter, minimum int64) (int64, error) {
	c.store.counterMu.Lock()
	defer c.store.counterMu.Unlock()
	if c.store.counters[counter.Key] < minimum {
		c.store.counters[counter.Key] = minimum
	}
	return c.store.counters[counter.Key], nil
}

// Value returns the current value of a counter key.
func (c *Counters) Value(key string) int64 {
	c.store.counterMu.Lock()
	defer c.store.counterMu.Unlock()
	return c.store.counters[key]
}
