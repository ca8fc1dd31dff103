package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

const (
	depthLevels     = 20
	ratioSamples    = 6
	ratioStableBand = 0.02 // +-2% around the recent mean counts as stable
)

// MicroSampler derives the order-book/open-interest microstructure snapshot.
// It keeps the previous open-interest sample per pair so it can report the
// delta between ticks.
type MicroSampler struct {
	client exchange.Client
	log    logger.Logger

	mu     sync.Mutex
	lastOI map[string]oiSample
}

type oiSample struct {
	value float64
	at    time.Time
}

// NewMicroSampler builds a sampler with no OI history.
func NewMicroSampler(client exchange.Client, log logger.Logger) *MicroSampler {
	return &MicroSampler{client: client, log: log, lastOI: make(map[string]oiSample)}
}

// Snapshot builds the microstructure view for one pair. The OI delta is nil
// on the first sample for a pair. Returns the latest open interest alongside
// so the pipeline can surface it on the analysis.
func (s *MicroSampler) Snapshot(ctx context.Context, pair string) (*types.Microstructure, float64, error) {
	depth, err := s.client.Depth(ctx, pair, depthLevels)
	if err != nil {
		return nil, 0, fmt.Errorf("micro %s: %w", pair, err)
	}
	total := depth.BidDepth + depth.AskDepth
	if total <= 0 {
		return nil, 0, fmt.Errorf("micro %s: empty book", pair)
	}
	mid := (depth.BestBid + depth.BestAsk) / 2
	if mid <= 0 {
		return nil, 0, fmt.Errorf("micro %s: degenerate top of book", pair)
	}

	micro := &types.Microstructure{
		ImbalanceRatio: depth.BidDepth / total,
		SpreadPct:      (depth.BestAsk - depth.BestBid) / mid * 100,
	}

	ratios, err := s.client.LongShortRatio(ctx, pair, ratioSamples)
	if err != nil {
		return nil, 0, fmt.Errorf("micro %s: %w", pair, err)
	}
	if len(ratios) == 0 {
		return nil, 0, fmt.Errorf("micro %s: no long/short ratio data", pair)
	}
	micro.LongShortRatio = ratios[len(ratios)-1]
	micro.LongShortTrend = ratioTrend(ratios)

	oi, err := s.client.OpenInterest(ctx, pair)
	if err != nil {
		return nil, 0, fmt.Errorf("micro %s: %w", pair, err)
	}
	s.mu.Lock()
	if prev, ok := s.lastOI[pair]; ok && prev.value > 0 {
		micro.OIDeltaPct = types.Float64((oi - prev.value) / prev.value * 100)
	}
	s.lastOI[pair] = oiSample{value: oi, at: time.Now()}
	s.mu.Unlock()

	return micro, oi, nil
}

// ratioTrend compares the latest sample against the mean of the preceding
// ones. A single sample is stable by definition.
func ratioTrend(ratios []float64) types.Trend {
	n := len(ratios)
	if n < 2 {
		return types.TrendStable
	}
	sum := 0.0
	for _, r := range ratios[:n-1] {
		sum += r
	}
	mean := sum / float64(n-1)
	if mean <= 0 {
		return types.TrendStable
	}
	last := ratios[n-1]
	switch {
	case last > mean*(1+ratioStableBand):
		return types.TrendRising
	case last < mean*(1-ratioStableBand):
		return types.TrendFalling
	default:
		return types.TrendStable
	}
}
