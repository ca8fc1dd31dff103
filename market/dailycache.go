package market

import (
	"context"
	"sync"
	"time"

	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

const (
	dailyInterval  = "1d"
	dailyCacheTTL  = time.Hour
	dailyCacheBars = 120
)

// DailyCache serves daily candle series for the higher-timeframe trend
// filter. Entries refresh at most once per TTL; a failed refresh falls back
// to the last successful fetch. Reads are concurrent, refreshes are
// serialised per cache.
type DailyCache struct {
	client exchange.Client
	log    logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*dailyEntry
}

type dailyEntry struct {
	candles   []types.Candle
	fetchedAt time.Time
}

// NewDailyCache builds an empty cache over the venue client.
func NewDailyCache(client exchange.Client, log logger.Logger) *DailyCache {
	return &DailyCache{
		client:  client,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*dailyEntry),
	}
}

// Get returns the cached daily series for the pair, refreshing it when the
// TTL has elapsed. Returns nil when no fetch has ever succeeded.
func (c *DailyCache) Get(ctx context.Context, pair string) []types.Candle {
	c.mu.RLock()
	entry := c.entries[pair]
	c.mu.RUnlock()

	if entry != nil && c.now().Sub(entry.fetchedAt) < dailyCacheTTL {
		return entry.candles
	}

	candles, err := c.client.Klines(ctx, pair, dailyInterval, dailyCacheBars)
	if err != nil {
		c.log.Warn("daily_cache_refresh_failed",
			logger.String("pair", pair),
			logger.Err(err),
		)
		if entry != nil {
			return entry.candles // stale but usable
		}
		return nil
	}

	c.mu.Lock()
	c.entries[pair] = &dailyEntry{candles: candles, fetchedAt: c.now()}
	c.mu.Unlock()
	return candles
}
