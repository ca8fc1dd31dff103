package position

import (
	"context"
	"time"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/executor"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/metrics"
	"github.com/evdnx/goqe/types"
)

// Monitor walks the open book every tick and enforces exits in strict
// priority: liquidation, trailing stop, stagnation, then stop-loss before
// take-profit. Closes are synchronous; the onClose hook runs in its own
// goroutine and cannot roll a close back.
type Monitor struct {
	cfg     config.MonitorConfig
	store   *Store
	exec    executor.Executor
	client  exchange.Client
	log     logger.Logger
	onClose func(types.TradeRecord)
	paper   bool

	now func() time.Time
}

// NewMonitor builds a monitor. onClose may be nil. paper enables the
// simulated liquidation check; live positions are liquidated by the venue.
func NewMonitor(cfg config.MonitorConfig, store *Store, exec executor.Executor, client exchange.Client, log logger.Logger, paper bool, onClose func(types.TradeRecord)) *Monitor {
	return &Monitor{
		cfg:     cfg,
		store:   store,
		exec:    exec,
		client:  client,
		log:     log,
		onClose: onClose,
		paper:   paper,
		now:     time.Now,
	}
}

// Run ticks until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.cfg.TickSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick fetches mark prices for all open pairs in one batched call and
// evaluates every position. A pair missing from the response is logged and
// left untouched; it is never evaluated against a stale price.
func (m *Monitor) Tick(ctx context.Context) {
	positions := m.store.Open()
	if len(positions) == 0 {
		return
	}

	seen := make(map[string]bool, len(positions))
	pairs := make([]string, 0, len(positions))
	for _, p := range positions {
		if !seen[p.Pair] {
			seen[p.Pair] = true
			pairs = append(pairs, p.Pair)
		}
	}
	prems, err := m.client.Premiums(ctx, pairs)
	if err != nil {
		m.log.Warn("monitor_price_fetch_failed", logger.Err(err))
		return
	}

	for _, pos := range positions {
		prem, ok := prems[pos.Pair]
		if !ok || prem.MarkPrice <= 0 {
			m.log.Warn("monitor_pair_skipped", logger.String("pair", pos.Pair))
			metrics.PairSkips.WithLabelValues("monitor").Inc()
			continue
		}
		if reason, hit := m.evaluate(pos, prem.MarkPrice); hit {
			m.close(ctx, pos, prem.MarkPrice, reason)
		}
	}
}

// evaluate applies the exit checks in priority order and reports the first
// hit. It also advances the position's PnL peak for the trailing stop.
func (m *Monitor) evaluate(pos *types.Position, mark float64) (types.ExitReason, bool) {
	pnlPct := pos.UnrealizedPnlPct(mark)

	// 1. Liquidation, paper mode only. Precedes everything else.
	if m.paper && m.liquidated(pos, mark) {
		return types.ExitLiquidation, true
	}

	// 2. Trailing stop. Funding positions exit on rate normalization, not
	// on profit retracement.
	if pos.TradeType != types.TradeFunding {
		if pnlPct > pos.PeakPnlPct {
			pos.PeakPnlPct = pnlPct
		}
		if pos.PeakPnlPct >= m.cfg.TrailingActivationPct {
			threshold := pos.PeakPnlPct * m.cfg.TrailingRetracement
			if m.cfg.TrailingOffsetPct > 0 {
				threshold = pos.PeakPnlPct - m.cfg.TrailingOffsetPct
			}
			if pnlPct <= threshold {
				return types.ExitTrailingStop, true
			}
		}

		// 3. Stagnation: a pure holding-time limit, regardless of PnL.
		if m.cfg.StagnationMinutes > 0 {
			limit := time.Duration(m.cfg.StagnationMinutes) * time.Minute
			if m.now().Sub(pos.OpenedAt) >= limit {
				return types.ExitStagnation, true
			}
		}
	}

	// 4. Stop-loss wins over take-profit when both are crossed.
	if pos.StopLoss != nil {
		if (pos.Direction == types.Long && mark <= *pos.StopLoss) ||
			(pos.Direction == types.Short && mark >= *pos.StopLoss) {
			return types.ExitStopLoss, true
		}
	}
	if pos.TakeProfit != nil {
		if (pos.Direction == types.Long && mark >= *pos.TakeProfit) ||
			(pos.Direction == types.Short && mark <= *pos.TakeProfit) {
			return types.ExitTakeProfit, true
		}
	}
	return "", false
}

// liquidated checks the configured maintenance-margin model against the
// current loss.
func (m *Monitor) liquidated(pos *types.Position, mark float64) bool {
	loss := -pos.UnrealizedPnl(mark)
	if loss <= 0 {
		return false
	}
	switch m.cfg.MarginModel {
	case config.MarginModelMarginPct:
		return loss >= pos.Size*m.cfg.MaintenanceMarginPct/100
	default: // rate-notional
		return loss >= pos.Notional()*m.cfg.MaintenanceMarginRate
	}
}

// close settles the position, updates the book and fires the hook. A failed
// venue close leaves the position open for the next tick.
func (m *Monitor) close(ctx context.Context, pos *types.Position, mark float64, reason types.ExitReason) {
	rec, err := m.exec.Close(ctx, pos, mark, reason)
	if err != nil {
		m.log.Error("monitor_close_failed",
			logger.String("pair", pos.Pair),
			logger.String("reason", string(reason)),
			logger.Err(err),
		)
		return
	}
	m.store.RecordClose(pos.ID, *rec)
	metrics.ExitsByReason.WithLabelValues(string(reason)).Inc()
	metrics.PositionsOpen.Set(float64(m.store.OpenCount()))

	m.log.Info("position_closed",
		logger.String("pair", pos.Pair),
		logger.String("strategy", pos.Strategy),
		logger.String("reason", string(reason)),
		logger.Float64("exit", rec.ExitPrice),
		logger.Float64("pnl", rec.Pnl),
	)
	if m.onClose != nil {
		rec := *rec
		go m.onClose(rec)
	}
}
