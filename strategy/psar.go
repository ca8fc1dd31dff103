package strategy

import (
	"context"
	"fmt"

	"github.com/evdnx/goqe/market"
	"github.com/evdnx/goqe/types"
)

// PSAR trades stop-and-reverse flips on the execution timeframe, but only
// in the direction the daily trend filter allows. A flip means the SAR level
// moved from one side of price to the other between the previous bar and
// the current one.
type PSAR struct {
	Base
	Daily *market.DailyCache
}

// NewPSAR builds the engine over the shared daily cache.
func NewPSAR(base Base, daily *market.DailyCache) *PSAR {
	return &PSAR{Base: base, Daily: daily}
}

func (p *PSAR) Name() string { return "psar" }

func (p *PSAR) Evaluate(ctx context.Context, a *types.PairAnalysis) (*types.Decision, error) {
	if p.blocked(a) {
		return nil, nil
	}
	ind := a.IndicatorsFor(p.Interval)
	candles := a.CandlesFor(p.Interval)
	if ind == nil || ind.PSAR == nil || ind.PrevPSAR == nil || len(candles) < 2 {
		return nil, nil
	}

	trend, ok := dailyTrend(ctx, p.Daily, a.Pair, int(p.Cfg.PSAR.DailySMAPeriod), p.Cfg.PSAR.DailyADXFloor)
	if !ok {
		return nil, nil
	}

	prevClose := candles[len(candles)-2].Close
	curClose := candles[len(candles)-1].Close
	bullFlip := *ind.PrevPSAR > prevClose && *ind.PSAR < curClose
	bearFlip := *ind.PrevPSAR < prevClose && *ind.PSAR > curClose
	if bullFlip == bearFlip {
		return nil, nil
	}

	dir := types.Long
	if bearFlip {
		dir = types.Short
	}
	if dir != trend {
		return nil, nil
	}

	confidence := 60.0
	reasoning := fmt.Sprintf("psar flip with daily trend: sar=%.4f prev_sar=%.4f", *ind.PSAR, *ind.PrevPSAR)
	return p.decide(p.Name(), a, dir, confidence, reasoning)
}
