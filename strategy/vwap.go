package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

// VWAP trades mean reversion against the session VWAP on the execution
// timeframe. The higher timeframe's own VWAP deviation can veto: when the
// broader session is stretched the same way past the conflict threshold,
// the "reversion" is more likely a trend.
type VWAP struct {
	Base
}

// NewVWAP builds the engine.
func NewVWAP(base Base) *VWAP { return &VWAP{Base: base} }

func (v *VWAP) Name() string { return "vwap" }

func deviationPct(price float64, vwap *float64) (float64, bool) {
	if vwap == nil || *vwap <= 0 || price <= 0 {
		return 0, false
	}
	return (price - *vwap) / *vwap * 100, true
}

// Evaluate fires long when price sits below VWAP past the deviation
// threshold and short when above, subject to the HTF veto.
func (v *VWAP) Evaluate(_ context.Context, a *types.PairAnalysis) (*types.Decision, error) {
	if v.blocked(a) {
		return nil, nil
	}
	ind := a.IndicatorsFor(v.Interval)
	if ind == nil {
		return nil, nil
	}
	dev, ok := deviationPct(a.MarkPrice, ind.VWAP)
	if !ok {
		return nil, nil
	}

	threshold := v.Cfg.VWAP.DeviationPct
	long := dev <= -threshold
	short := dev >= threshold
	if long == short {
		return nil, nil
	}
	dir := types.Long
	if short {
		dir = types.Short
	}

	if htf := a.IndicatorsFor(v.HTF); htf != nil {
		if htfDev, ok := deviationPct(a.MarkPrice, htf.VWAP); ok {
			conflict := v.Cfg.VWAP.HTFConflictPct
			if (dir == types.Long && htfDev <= -conflict) ||
				(dir == types.Short && htfDev >= conflict) {
				v.Log.Info("vwap_htf_veto",
					logger.String("pair", a.Pair),
					logger.Float64("dev_pct", dev),
					logger.Float64("htf_dev_pct", htfDev),
				)
				return nil, nil
			}
		}
	}

	// Deeper stretch, higher conviction.
	confidence := 50 + math.Min((math.Abs(dev)-threshold)*10, 30)
	reasoning := fmt.Sprintf("vwap reversion: dev=%.2f%%", dev)
	return v.decide(v.Name(), a, dir, confidence, reasoning)
}
