package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/evdnx/goqe/types"
)

// Micro trades order-flow extremes and ignores the regime classifier
// entirely: its signal lives in the book, not the candles. Falling open
// interest mutes it, since forced deleveraging makes book imbalance
// unreliable.
type Micro struct {
	Base
}

// NewMicro builds the engine.
func NewMicro(base Base) *Micro { return &Micro{Base: base} }

func (m *Micro) Name() string { return "microstructure" }

func (m *Micro) Evaluate(_ context.Context, a *types.PairAnalysis) (*types.Decision, error) {
	micro := a.Micro
	if micro == nil || micro.OIDeltaPct == nil || micro.LongShortTrend == "" {
		return nil, nil
	}
	if *micro.OIDeltaPct < 0 {
		return nil, nil
	}

	cfg := m.Cfg.Micro
	imb := micro.ImbalanceRatio
	if imb >= cfg.DeadZoneLow && imb <= cfg.DeadZoneHigh {
		return nil, nil
	}

	// The trend tracks the long/short account ratio. Long rides bid
	// pressure while shorts are stable or closing out (ratio not falling);
	// short fades longs crowding (ratio rising) into an ask-heavy book.
	long := imb >= cfg.LongImbalance && micro.LongShortTrend != types.TrendFalling
	short := imb <= cfg.ShortImbalance && micro.LongShortTrend == types.TrendRising
	if long == short {
		return nil, nil
	}
	dir := types.Long
	if short {
		dir = types.Short
	}

	confidence := 50 + math.Abs(imb-0.5)*60
	if micro.SpreadPct > cfg.WideSpreadPct {
		confidence -= 10
	}
	if *micro.OIDeltaPct >= cfg.OISurgePct {
		confidence += 10
	}
	reasoning := fmt.Sprintf("book imbalance: imb=%.2f ls=%s oi=%+.1f%% spread=%.3f%%",
		imb, micro.LongShortTrend, *micro.OIDeltaPct, micro.SpreadPct)
	return m.decide(m.Name(), a, dir, confidence, reasoning)
}
