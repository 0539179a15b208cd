package store

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Sweeper periodically purges history older than the retention window.
type Sweeper struct {
	store    HistoryStore
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	purged   prometheus.Counter
	now      func() time.Time

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSweeper creates a sweeper. purged may be nil.
func NewSweeper(s HistoryStore, ttl, interval time.Duration, logger *zap.Logger, purged prometheus.Counter) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    s,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		purged:   purged,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Start runs a sweep every interval until ctx is done or Stop is called.
// A non-positive interval or ttl disables the loop.
func (sw *Sweeper) Start(ctx context.Context) {
	if sw.interval <= 0 || sw.ttl <= 0 {
		sw.logger.Info("History sweeper disabled")
		return
	}
	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sw.stop:
				return
			case <-ticker.C:
				if _, err := sw.Sweep(ctx); err != nil && ctx.Err() == nil {
					sw.logger.Warn("History sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Sweep purges once and reports how many records were removed.
func (sw *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := sw.store.Purge(ctx, sw.now().Add(-sw.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if sw.purged != nil {
			sw.purged.Add(float64(n))
		}
		sw.logger.Info("Purged expired history", zap.Int64("count", n))
	}
	return n, nil
}

// Stop ends the loop and waits for an in-flight sweep.
func (sw *Sweeper) Stop() {
	sw.stopOnce.Do(func() { close(sw.stop) })
	sw.wg.Wait()
}
