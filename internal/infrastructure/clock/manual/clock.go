package manualclock

import (
	"context"
	"sync/atomic"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
)

// Clock only moves when told to.
type Clock struct {
	height atomic.Int64
}

var _ ports.LedgerClock = (*Clock)(nil)

func NewClock(startHeight int64) *Clock {
	c := &Clock{}
	c.height.Store(startHeight)
	return c
}

func (c *Clock) Start() error { return nil }

func (c *Clock) Stop() {}

func (c *Clock) CurrentHeight(_ context.Context) (int64, error) {
	return c.height.Load(), nil
}

// Advance moves the clock forward by the given number of blocks and returns
// the new height.
func (c *Clock) Advance(blocks int64) int64 {
	if blocks < 0 {
		blocks = 0
	}
	return c.height.Add(blocks)
}

func (c *Clock) SetHeight(height int64) {
	c.height.Store(height)
}
