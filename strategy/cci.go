package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/evdnx/goqe/market"
	"github.com/evdnx/goqe/types"
)

// CCITrend trades CCI threshold crossings on the execution timeframe under
// the same daily trend filter as the PSAR engine. A crossing means the
// previous bar was inside the threshold band and the current bar is outside.
type CCITrend struct {
	Base
	Daily *market.DailyCache
}

// NewCCITrend builds the engine over the shared daily cache.
func NewCCITrend(base Base, daily *market.DailyCache) *CCITrend {
	return &CCITrend{Base: base, Daily: daily}
}

func (c *CCITrend) Name() string { return "cci-trend" }

func (c *CCITrend) Evaluate(ctx context.Context, a *types.PairAnalysis) (*types.Decision, error) {
	if c.blocked(a) {
		return nil, nil
	}
	ind := a.IndicatorsFor(c.Interval)
	if ind == nil || ind.CCI == nil || ind.PrevCCI == nil {
		return nil, nil
	}

	trend, ok := dailyTrend(ctx, c.Daily, a.Pair, int(c.Cfg.CCI.DailySMAPeriod), c.Cfg.CCI.DailyADXFloor)
	if !ok {
		return nil, nil
	}

	threshold := c.Cfg.CCI.Threshold
	crossUp := *ind.PrevCCI <= threshold && *ind.CCI > threshold
	crossDown := *ind.PrevCCI >= -threshold && *ind.CCI < -threshold
	if crossUp == crossDown {
		return nil, nil
	}

	dir := types.Long
	if crossDown {
		dir = types.Short
	}
	if dir != trend {
		return nil, nil
	}

	confidence := 55 + math.Min((math.Abs(*ind.CCI)-threshold)*0.1, 20)
	reasoning := fmt.Sprintf("cci cross with daily trend: cci=%.1f prev=%.1f", *ind.CCI, *ind.PrevCCI)
	return c.decide(c.Name(), a, dir, confidence, reasoning)
}
