package market

import (
	"context"
	"testing"
	"time"

	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/testutils"
)

// ---------------------------------------------------------------------
// Daily cache refresh behaviour
// ---------------------------------------------------------------------
//
// The daily series backs the PSAR/CCI trend filter and may refresh at most
// once per TTL. A failed refresh serves the last good fetch instead of
// dropping the filter for the tick.
func TestDailyCacheTTL(t *testing.T) {
	client := testutils.NewMockClient()
	client.SetCandles("BTCUSDT", "1d", testutils.RampCandles(60, 100, 1))

	cache := NewDailyCache(client, logger.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	if got := cache.Get(ctx, "BTCUSDT"); len(got) != 60 {
		t.Fatalf("first get should fetch, got %d candles", len(got))
	}
	calls := client.KlinesCalls()

	// Within the TTL: served from cache, no new fetch.
	now = now.Add(30 * time.Minute)
	cache.Get(ctx, "BTCUSDT")
	if client.KlinesCalls() != calls {
		t.Fatalf("get within TTL must not refetch")
	}

	// Past the TTL: refreshed.
	now = now.Add(45 * time.Minute)
	cache.Get(ctx, "BTCUSDT")
	if client.KlinesCalls() != calls+1 {
		t.Fatalf("get past TTL must refetch")
	}
}

func TestDailyCacheStaleFallback(t *testing.T) {
	client := testutils.NewMockClient()
	client.SetCandles("BTCUSDT", "1d", testutils.RampCandles(60, 100, 1))

	cache := NewDailyCache(client, logger.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	cache.Get(ctx, "BTCUSDT")

	// Break the feed and expire the entry: the stale copy is still served.
	delete(client.Candles, "BTCUSDT/1d")
	now = now.Add(2 * time.Hour)
	if got := cache.Get(ctx, "BTCUSDT"); len(got) != 60 {
		t.Fatalf("expected stale fallback, got %d candles", len(got))
	}

	// A pair that never fetched successfully has nothing to fall back to.
	if got := cache.Get(ctx, "ETHUSDT"); got != nil {
		t.Fatalf("never-fetched pair should yield nil, got %d candles", len(got))
	}
}
