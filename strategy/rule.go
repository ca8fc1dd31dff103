package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/evdnx/goti"

	"github.com/evdnx/goqe/types"
)

// Rule is the regime-routed baseline engine: RSI pullback confirmed by MACD
// in a trend, RSI extreme at a Bollinger band edge in a range. An HMA
// crossover from the indicator suite boosts confidence when it agrees with
// the signal direction.
type Rule struct {
	Base
	suiteFactory func() (*goti.IndicatorSuite, error)
}

// NewRule wires the engine with a fresh indicator-suite factory.
func NewRule(base Base) *Rule {
	return &Rule{
		Base: base,
		suiteFactory: func() (*goti.IndicatorSuite, error) {
			return goti.NewIndicatorSuiteWithConfig(goti.DefaultConfig())
		},
	}
}

func (r *Rule) Name() string { return "rule" }

// Evaluate routes by regime. Both-direction ties return no decision.
func (r *Rule) Evaluate(_ context.Context, a *types.PairAnalysis) (*types.Decision, error) {
	if r.blocked(a) {
		return nil, nil
	}
	ind := a.IndicatorsFor(r.Interval)
	if ind == nil || ind.RSI == nil {
		return nil, nil
	}

	var long, short bool
	var confidence float64
	var reasoning string

	switch a.Regime {
	case types.RegimeTrending:
		if ind.MACD == nil || ind.MACDSignal == nil || ind.MACDHist == nil {
			return nil, nil
		}
		long = *ind.RSI <= 45 && *ind.MACDHist > 0 && *ind.MACD > *ind.MACDSignal
		short = *ind.RSI >= 55 && *ind.MACDHist < 0 && *ind.MACD < *ind.MACDSignal
		confidence = 50 + math.Min(math.Abs(*ind.RSI-50), 20)
		reasoning = fmt.Sprintf("trend pullback: rsi=%.1f macd_hist=%.4f", *ind.RSI, *ind.MACDHist)

	case types.RegimeRanging:
		if ind.BBUpper == nil || ind.BBLower == nil || a.MarkPrice <= 0 {
			return nil, nil
		}
		edge := r.Cfg.Rule.BandEdgePct / 100 * a.MarkPrice
		long = *ind.RSI <= r.Cfg.Rule.RSIOversold && a.MarkPrice-*ind.BBLower <= edge
		short = *ind.RSI >= r.Cfg.Rule.RSIOverbought && *ind.BBUpper-a.MarkPrice <= edge
		confidence = 50 + math.Min(math.Abs(*ind.RSI-50)-20, 25)
		reasoning = fmt.Sprintf("range extreme: rsi=%.1f price=%.4f", *ind.RSI, a.MarkPrice)

	default:
		return nil, nil
	}

	if long == short { // neither, or an irreconcilable tie
		return nil, nil
	}
	dir := types.Long
	if short {
		dir = types.Short
	}

	if boost := r.hmaBoost(a, dir); boost > 0 {
		confidence += boost
		reasoning += " +hma"
	}
	return r.decide(r.Name(), a, dir, confidence, reasoning)
}

// hmaBoost replays the execution candles through a fresh suite and rewards
// an HMA crossover that agrees with the signal. Suite errors only mute the
// booster.
func (r *Rule) hmaBoost(a *types.PairAnalysis, dir types.Side) float64 {
	candles := a.CandlesFor(r.Interval)
	if len(candles) == 0 {
		return 0
	}
	suite, err := r.suiteFactory()
	if err != nil {
		return 0
	}
	for _, c := range candles {
		if err := suite.Add(c.High, c.Low, c.Close, c.Volume); err != nil {
			return 0
		}
	}
	if dir == types.Long {
		if ok, err := suite.GetHMA().IsBullishCrossover(); err == nil && ok {
			return 10
		}
		return 0
	}
	if ok, err := suite.GetHMA().IsBearishCrossover(); err == nil && ok {
		return 10
	}
	return 0
}
