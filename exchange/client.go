// Package exchange defines the venue boundary consumed by the analysis
// pipeline, the funding engine and the executors, plus its Binance
// implementation.
package exchange

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/evdnx/goqe/types"
)

// Premium bundles the two values the venue's premium-index endpoint returns
// per pair in one batched call.
type Premium struct {
	MarkPrice   float64
	FundingRate float64 // per funding period
}

// Depth is the top-of-book summary derived from one order-book snapshot.
type Depth struct {
	BestBid  float64
	BestAsk  float64
	BidDepth float64 // base quantity summed over the requested levels
	AskDepth float64
}

// Client is the read-side venue API. A missing pair in a batched result
// means "no data this tick", never price zero.
type Client interface {
	// Klines fetches the most recent candles for one pair and interval.
	Klines(ctx context.Context, pair, interval string, limit int) ([]types.Candle, error)
	// KlinesRange fetches a historical range, chunked by the venue's
	// per-call limit, concatenated and re-sorted by timestamp.
	KlinesRange(ctx context.Context, pair, interval string, start, end time.Time) ([]types.Candle, error)
	// Premiums returns mark price and current funding rate for the requested
	// pairs in a single batched call. Pairs the venue returned nothing for
	// are absent from the map.
	Premiums(ctx context.Context, pairs []string) (map[string]Premium, error)
	Depth(ctx context.Context, pair string, levels int) (*Depth, error)
	OpenInterest(ctx context.Context, pair string) (float64, error)
	// LongShortRatio returns recent global long/short account ratio samples,
	// oldest first.
	LongShortRatio(ctx context.Context, pair string, samples int) ([]float64, error)
}

// IntervalDuration maps a venue interval string to its duration.
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, fmt.Errorf("exchange: unknown interval %q", interval)
	}
	return d, nil
}

var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// sortDedupe orders candles ascending by timestamp and drops duplicates,
// keeping the later fetch for any repeated timestamp.
func sortDedupe(candles []types.Candle) []types.Candle {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	out := candles[:0]
	for _, c := range candles {
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(c.Timestamp) {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
