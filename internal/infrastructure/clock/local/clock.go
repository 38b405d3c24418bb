package localclock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

// clock produces a new block every blockInterval, starting from startHeight.
// It stands in for a real chain in local and regtest like setups.
type clock struct {
	scheduler     *gocron.Scheduler
	blockInterval time.Duration
	height        *atomic.Int64
}

func NewClock(startHeight int64, blockInterval time.Duration) (ports.LedgerClock, error) {
	if startHeight < 0 {
		return nil, fmt.Errorf("start height must not be negative")
	}
	if blockInterval <= 0 {
		return nil, fmt.Errorf("block interval must be strictly positive")
	}

	height := &atomic.Int64{}
	height.Store(startHeight)

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.WaitForScheduleAll()

	return &clock{scheduler, blockInterval, height}, nil
}

func (c *clock) Start() error {
	if _, err := c.scheduler.Every(c.blockInterval).Do(c.mine); err != nil {
		return fmt.Errorf("failed to schedule block production: %w", err)
	}
	c.scheduler.StartAsync()
	return nil
}

func (c *clock) Stop() {
	c.scheduler.Stop()
	c.scheduler.Clear()
}

func (c *clock) CurrentHeight(_ context.Context) (int64, error) {
	return c.height.Load(), nil
}

func (c *clock) mine() {
	height := c.height.Add(1)
	log.Debugf("local clock: new block at height %d", height)
}
