// Package strategy holds the directional decision engines. Every engine is
// a pure evaluation over one PairAnalysis snapshot: no fetching, no order
// placement, no shared state beyond the injected daily-candle cache.
package strategy

import (
	"context"
	"math"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/metrics"
	"github.com/evdnx/goqe/types"
)

// Strategy is one decision engine. Evaluate returns (nil, nil) when no trade
// is warranted; an error means the evaluation itself failed.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, a *types.PairAnalysis) (*types.Decision, error)
}

// FundsFunc reports the sizing inputs at evaluation time: the reference
// balance and the remaining exposure headroom in USD.
type FundsFunc func() (balance, headroom float64)

// Sizer converts confidence into margin to commit. 0 means reject.
type Sizer interface {
	Size(confidence, balance, headroom float64) float64
}

// Base bundles the dependencies and geometry helpers shared by all engines.
type Base struct {
	Cfg      config.StrategyConfig
	Log      logger.Logger
	Interval string
	HTF      string
	Sizer    Sizer
	Funds    FundsFunc
}

// blocked applies the shared regime filter. Only the microstructure engine
// opts out.
func (b *Base) blocked(a *types.PairAnalysis) bool {
	return a.Regime == types.RegimeVolatile
}

// levels derives the stop from the ATR and the target from the stop
// distance. Returns ok=false when the ATR is missing or the geometry
// degenerates (stop at or through the entry).
func (b *Base) levels(dir types.Side, entry float64, ind *types.TechnicalIndicators) (sl, tp float64, ok bool) {
	if ind == nil || ind.ATR == nil || entry <= 0 {
		return 0, 0, false
	}
	stopDist := *ind.ATR * b.Cfg.StopATRMultiplier
	if stopDist <= 0 || stopDist >= entry {
		return 0, 0, false
	}
	tpDist := stopDist * b.Cfg.RewardRisk
	if dir == types.Long {
		return entry - stopDist, entry + tpDist, true
	}
	return entry + stopDist, entry - tpDist, true
}

// decide assembles the decision, sizes it and validates the level geometry.
// Returns (nil, nil) when the sizer rejects.
func (b *Base) decide(name string, a *types.PairAnalysis, dir types.Side, confidence float64, reasoning string) (*types.Decision, error) {
	ind := a.IndicatorsFor(b.Interval)
	sl, tp, ok := b.levels(dir, a.MarkPrice, ind)
	if !ok {
		return nil, nil
	}

	confidence = math.Min(math.Max(confidence, 0), types.MaxConfidence)

	balance, headroom := b.Funds()
	margin := b.Sizer.Size(confidence, balance, headroom)
	if margin <= 0 {
		b.Log.Info("decision_rejected_by_sizer",
			logger.String("pair", a.Pair),
			logger.String("strategy", name),
			logger.Float64("confidence", confidence),
		)
		return nil, nil
	}

	d := &types.Decision{
		Pair:       a.Pair,
		Strategy:   name,
		Direction:  dir,
		EntryPrice: a.MarkPrice,
		StopLoss:   sl,
		TakeProfit: tp,
		Confidence: confidence,
		Reasoning:  reasoning,
		Regime:     a.Regime,
		SizeUSD:    margin,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	metrics.DecisionsEmitted.WithLabelValues(name).Inc()
	b.Log.Info("decision_emitted",
		logger.String("pair", a.Pair),
		logger.String("strategy", name),
		logger.String("direction", string(dir)),
		logger.Float64("confidence", confidence),
		logger.Float64("entry", d.EntryPrice),
		logger.String("reasoning", reasoning),
	)
	return d, nil
}
