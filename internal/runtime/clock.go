package runtime

import (
	"context"
	"fmt"
	"sync"
)

// Clock supplies block time in unix seconds.
type Clock interface {
	Now() uint64
}

// ManualClock is advanced explicitly by tests and scenarios.
type ManualClock struct {
	mu  sync.RWMutex
	now uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to ts. Time never goes backwards.
func (c *ManualClock) Set(ts uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts < c.now {
		return fmt.Errorf("clock cannot move back from %d to %d", c.now, ts)
	}
	c.now = ts
	return nil
}

func (c *ManualClock) Advance(seconds uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
	return c.now
}

// TimestampSource reports the latest block timestamp.
type TimestampSource interface {
	LatestTimestamp(ctx context.Context) (uint64, error)
}

// ChainClock follows the latest block of a node. Now returns the timestamp seen
// at the last Refresh.
type ChainClock struct {
	src TimestampSource

	mu  sync.RWMutex
	now uint64
}

func NewChainClock(ctx context.Context, src TimestampSource) (*ChainClock, error) {
	c := &ChainClock{src: src}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ChainClock) Refresh(ctx context.Context) error {
	ts, err := c.src.LatestTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("latest timestamp: %w", err)
	}
	c.mu.Lock()
	if ts > c.now {
		c.now = ts
	}
	c.mu.Unlock()
	return nil
}

func (c *ChainClock) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}
