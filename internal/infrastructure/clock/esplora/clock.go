package esploraclock

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const tipHeightEndpoint = "/blocks/tip/height"

type Option func(*clock)

func WithTickerInterval(interval time.Duration) Option {
	return func(c *clock) {
		c.tickerInterval = interval
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *clock) {
		c.client = client
	}
}

// clock follows the tip of an esplora instance. The last fetched height is
// cached so that a temporarily unreachable explorer does not block reads.
type clock struct {
	tipURL         string
	client         *http.Client
	tickerInterval time.Duration

	lock       *sync.RWMutex
	lastHeight int64
	stopCh     chan struct{}
	stopOnce   *sync.Once
}

func NewClock(esploraURL string, opts ...Option) (ports.LedgerClock, error) {
	if len(esploraURL) == 0 {
		return nil, fmt.Errorf("esplora URL is required")
	}

	tipURL, err := url.JoinPath(esploraURL, tipHeightEndpoint)
	if err != nil {
		return nil, err
	}

	c := &clock{
		tipURL:         tipURL,
		client:         &http.Client{Timeout: 10 * time.Second},
		tickerInterval: 10 * time.Second,
		lock:           &sync.RWMutex{},
		stopCh:         make(chan struct{}),
		stopOnce:       &sync.Once{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *clock) Start() error {
	if _, err := c.CurrentHeight(context.Background()); err != nil {
		return fmt.Errorf("failed to fetch tip height from %s: %w", c.tipURL, err)
	}

	go func() {
		ticker := time.NewTicker(c.tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				if _, err := c.fetchTipHeight(context.Background()); err != nil {
					log.WithError(err).Warn("failed to refresh tip height")
				}
			}
		}
	}()
	return nil
}

func (c *clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *clock) CurrentHeight(ctx context.Context) (int64, error) {
	tip, err := c.fetchTipHeight(ctx)
	if err == nil {
		return tip, nil
	}

	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.lastHeight <= 0 {
		return 0, err
	}
	log.WithError(err).Warnf("using last known tip height %d", c.lastHeight)
	return c.lastHeight, nil
}

func (c *clock) fetchTipHeight(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tipURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}

	// nolint:all
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var tip int64
	if _, err := fmt.Fscanf(resp.Body, "%d", &tip); err != nil {
		return 0, err
	}

	log.Debugf("fetching tip height from %s, got %d", c.tipURL, tip)

	c.lock.Lock()
	if tip > c.lastHeight {
		c.lastHeight = tip
	}
	tip = c.lastHeight
	c.lock.Unlock()

	return tip, nil
}
