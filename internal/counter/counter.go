// Package counter holds the persisted counter that accepted events mutate.
package counter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sweeney/volume-counter/internal/logic"
	"github.com/sweeney/volume-counter/internal/metrics"
)

// Counter is a signed integer counter that persists every change.
// Safe for concurrent use: HTTP controls and the run loop both mutate it.
type Counter struct {
	store   Store
	clock   clockwork.Clock
	log     *zap.SugaredLogger
	timeout time.Duration

	mu          sync.RWMutex
	value       int64
	lastUpdated time.Time
}

// New loads the stored value and returns a Counter. A load failure is logged
// and the counter starts at 0 so it stays usable.
func New(ctx context.Context, store Store, clock clockwork.Clock, log *zap.SugaredLogger) *Counter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Counter{
		store:       store,
		clock:       clock,
		log:         log,
		timeout:     2 * time.Second,
		lastUpdated: clock.Now(),
	}

	v, err := store.Load(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		log.Warnw("failed to load counter, starting at 0", "error", err)
	} else {
		c.value = v
	}
	metrics.CounterValue.Set(float64(c.value))
	return c
}

// Increment adds one and returns the new value.
func (c *Counter) Increment() int64 {
	return c.mutate(func(v int64) int64 { return v + 1 })
}

// Decrement subtracts one and returns the new value.
func (c *Counter) Decrement() int64 {
	return c.mutate(func(v int64) int64 { return v - 1 })
}

// Reset sets the value to zero and returns it.
func (c *Counter) Reset() int64 {
	return c.mutate(func(int64) int64 { return 0 })
}

// Apply maps an accepted direction onto Increment, Decrement or Reset.
func (c *Counter) Apply(dir logic.Direction) (int64, error) {
	switch dir {
	case logic.DirectionIncrease:
		return c.Increment(), nil
	case logic.DirectionDecrease:
		return c.Decrement(), nil
	case logic.DirectionReset:
		return c.Reset(), nil
	}
	return c.Value(), fmt.Errorf("unknown direction %q", dir)
}

// Value returns the current value.
func (c *Counter) Value() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// LastUpdated returns the time of the last change, or construction time.
func (c *Counter) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

func (c *Counter) mutate(fn func(int64) int64) int64 {
	c.mu.Lock()
	c.value = fn(c.value)
	c.lastUpdated = c.clock.Now()
	v := c.value

	// Saved under the lock so concurrent writers cannot persist out of order
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	err := c.store.Save(ctx, v)
	cancel()
	c.mu.Unlock()

	metrics.CounterValue.Set(float64(v))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		c.log.Warnw("failed to persist counter", "value", v, "error", err)
	}
	return v
}
