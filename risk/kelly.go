// Package risk holds the Kelly position sizer and the trade-permission
// gate. Sizing converts a decision's confidence into a bounded margin
// commitment; the gate decides whether any new position may be opened at
// all.
package risk

import (
	"math"

	"github.com/evdnx/goqe/config"
)

// Sizer computes the margin to commit from confidence via a fractional
// Kelly bet against a reference balance.
type Sizer struct {
	cfg        config.SizerConfig
	rewardRisk float64
	leverage   float64
}

// NewSizer builds a sizer. rewardRisk is the payoff ratio the strategies
// target (take-profit distance over stop distance); leverage converts the
// notional exposure headroom into margin room.
func NewSizer(cfg config.SizerConfig, rewardRisk, leverage float64) *Sizer {
	if leverage <= 0 {
		leverage = 1
	}
	return &Sizer{cfg: cfg, rewardRisk: rewardRisk, leverage: leverage}
}

// KellyFraction maps confidence (0..90) to an optimal bet fraction. The win
// probability is a conservative linear ramp from a coin flip: even maximum
// confidence only claims a modest edge.
func (s *Sizer) KellyFraction(confidence float64) float64 {
	if confidence <= 0 {
		return 0
	}
	p := 0.5 + (confidence/100)*0.2
	b := s.rewardRisk
	if b <= 0 {
		return 0
	}
	f := (p*(b+1) - 1) / b
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

// tierScale shrinks the bet for lower confidence bands on top of the Kelly
// fraction itself.
func tierScale(confidence float64) float64 {
	switch {
	case confidence >= 70:
		return 1.0
	case confidence >= 50:
		return 0.75
	default:
		return 0.5
	}
}

// Size returns the margin to commit in USD: fractional Kelly of the
// balance, tier-scaled, clamped to the per-trade cap and to the remaining
// exposure headroom. headroom is notional, so the clamp keeps
// margin x leverage inside it. Returns 0 when the result is non-positive or
// below the minimum tradable floor. The caller must treat 0 as a rejection.
func (s *Sizer) Size(confidence, balance, headroom float64) float64 {
	if balance <= 0 || headroom <= 0 {
		return 0
	}
	bet := s.KellyFraction(confidence) * s.cfg.KellyMultiplier * balance
	bet *= tierScale(confidence)
	bet = math.Min(bet, s.cfg.MaxBetUSD)
	bet = math.Min(bet, headroom/s.leverage)
	if bet < s.cfg.MinBetUSD || bet <= 0 {
		return 0
	}
	return bet
}
