package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/evdnx/goqe/indicator"
	"github.com/evdnx/goqe/types"
)

// Breakout trades closes beyond the lookback high/low channel. The channel
// excludes the current bar so the breakout candle cannot widen the channel
// it is breaking. Requires trend strength (ADX) and a volume spike.
type Breakout struct {
	Base
}

// NewBreakout builds the engine.
func NewBreakout(base Base) *Breakout { return &Breakout{Base: base} }

func (b *Breakout) Name() string { return "breakout" }

func (b *Breakout) Evaluate(_ context.Context, a *types.PairAnalysis) (*types.Decision, error) {
	if b.blocked(a) {
		return nil, nil
	}
	ind := a.IndicatorsFor(b.Interval)
	candles := a.CandlesFor(b.Interval)
	if ind == nil || ind.ADX == nil || ind.VolumeAvg20 == nil || len(candles) == 0 {
		return nil, nil
	}
	if *ind.ADX < b.Cfg.Breakout.ADXFloor || *ind.VolumeAvg20 <= 0 {
		return nil, nil
	}

	current := candles[len(candles)-1]
	volRatio := current.Volume / *ind.VolumeAvg20
	if volRatio < b.Cfg.Breakout.VolumeMultiple {
		return nil, nil
	}

	high, low, ok := channel(candles, b.Cfg.Breakout.Lookback)
	if !ok {
		return nil, nil
	}

	long := current.Close > high
	short := current.Close < low
	if long == short {
		return nil, nil
	}
	dir := types.Long
	if short {
		dir = types.Short
	}

	confidence := 50.0
	confidence += math.Min((*ind.ADX-b.Cfg.Breakout.ADXFloor)*0.5, 20)
	confidence += math.Min((volRatio-b.Cfg.Breakout.VolumeMultiple)*5, 15)
	reasoning := fmt.Sprintf("channel breakout: close=%.4f adx=%.1f vol=%.1fx", current.Close, *ind.ADX, volRatio)
	return b.decide(b.Name(), a, dir, confidence, reasoning)
}

func channel(candles []types.Candle, lookback int) (high, low float64, ok bool) {
	h, l := indicator.Channel(candles, lookback)
	if h == nil || l == nil {
		return 0, 0, false
	}
	return *h, *l, true
}
