package hoard

import (
	"context"
	"time"
)

// startSweep launches the background expiry sweep. The cache owns the
// goroutine; Close stops it.
func (c *Cache[K, V]) startSweep() {
	ctx, cancel := context.WithCancel(context.Background())
	c.sweepCancel = cancel
	c.sweepWG.Add(1)
	go c.sweepLoop(ctx)
}

func (c *Cache[K, V]) sweepLoop(ctx context.Context) {
	defer c.sweepWG.Done()

	ticker := time.NewTicker(c.cfg.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired drops every expired entry through the same removal path
// as lazy expiry on access, so accounting and events are identical.
func (c *Cache[K, V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.clock.Now()
	for key, ent := range c.data {
		if !ent.isExpired(now) {
			continue
		}
		c.removeEntry(key, ent)
		c.stats.expire()
		c.events.emit(ExpireEvent[K, V]{Key: key, Value: ent.value})
	}
}

// Close stops the background sweep, if one was configured.
// Close is safe to call multiple times.
func (c *Cache[K, V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.sweepCancel
	c.mu.Unlock()

	// Cancel outside the lock so shutdown doesn't block other callers.
	if cancel != nil {
		cancel()
		c.sweepWG.Wait()
	}
	return nil
}
