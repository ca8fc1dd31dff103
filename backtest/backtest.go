// Package backtest replays historical candles through one strategy engine
// with the same decision, sizing and exit semantics the live loop uses.
// The replay is single-threaded and deterministic: same candles in, same
// trades out.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/indicator"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/market"
	"github.com/evdnx/goqe/risk"
	"github.com/evdnx/goqe/strategy"
	"github.com/evdnx/goqe/types"
)

// Bars the slowest indicator needs before evaluations start.
const warmupBars = 40

// StrategyFactory builds the engine under test from the replay-bound base.
// The factory runs once per Run call.
type StrategyFactory func(base strategy.Base) strategy.Strategy

// Result aggregates one pair's replay.
type Result struct {
	Pair         string
	Trades       []types.TradeRecord
	WinRate      float64 // fraction of trades with positive PnL
	TotalReturn  float64 // final vs initial balance, percent
	MaxDrawdown  float64 // worst peak-to-trough on the equity curve, percent
	Sharpe       float64 // annualized, from per-trade returns
	FinalBalance float64
}

// Engine replays candles through one strategy.
type Engine struct {
	cfg *config.Config
	log logger.Logger
}

// New builds a backtest engine.
func New(cfg *config.Config, log logger.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// sim is the running account state of one replay.
type sim struct {
	balance float64
	pos     *types.Position
	trades  []types.TradeRecord
	equity  []float64
	feeRate float64
	maxExpo float64
}

func (s *sim) headroom() float64 {
	if s.maxExpo <= 0 {
		return 1e18
	}
	open := 0.0
	if s.pos != nil {
		open = s.pos.Notional()
	}
	return math.Max(s.maxExpo-open, 0)
}

// close settles the open position at price on the given bar's timestamp.
func (s *sim) close(price float64, at time.Time, reason types.ExitReason) {
	pos := s.pos
	pnl := pos.UnrealizedPnl(price) - s.feeRate*pos.Notional()
	s.balance += pnl
	s.trades = append(s.trades, types.TradeRecord{
		PositionID: pos.ID,
		Pair:       pos.Pair,
		Strategy:   pos.Strategy,
		TradeType:  pos.TradeType,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Size:       pos.Size,
		Leverage:   pos.Leverage,
		Pnl:        pnl,
		ExitReason: reason,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   at,
	})
	s.equity = append(s.equity, s.balance)
	s.pos = nil
}

// Run replays the lower-timeframe series for one pair, consulting the
// higher-timeframe series for HTF indicators. Entries fill at the open of
// the bar after the signal bar.
func (e *Engine) Run(ctx context.Context, pair string, factory StrategyFactory, ltf, htf []types.Candle) (*Result, error) {
	if len(ltf) < warmupBars+2 {
		return nil, fmt.Errorf("backtest %s: need at least %d candles, got %d", pair, warmupBars+2, len(ltf))
	}

	s := &sim{
		balance: e.cfg.Trading.Balance,
		feeRate: e.cfg.Monitor.FeeRate,
		maxExpo: e.cfg.Risk.MaxExposureUSD,
		equity:  []float64{e.cfg.Trading.Balance},
	}
	base := strategy.Base{
		Cfg:      e.cfg.Strategy,
		Log:      e.log,
		Interval: e.cfg.Trading.Interval,
		HTF:      e.cfg.Trading.HTFInterval,
		Sizer:    risk.NewSizer(e.cfg.Sizer, e.cfg.Strategy.RewardRisk, e.cfg.Trading.Leverage),
		Funds:    func() (float64, float64) { return s.balance, s.headroom() },
	}
	strat := factory(base)

	var pending *types.Decision
	for i := warmupBars; i < len(ltf); i++ {
		bar := ltf[i]

		// Fill last bar's signal at this bar's open.
		if pending != nil {
			s.open(pending, bar, e.cfg.Trading.Leverage)
			pending = nil
		}

		if s.pos != nil {
			e.checkExits(s, bar)
		}

		// Last bar cannot produce a fill, so do not evaluate it.
		if s.pos == nil && i < len(ltf)-1 {
			a := e.buildAnalysis(pair, ltf[:i+1], htf)
			d, err := strat.Evaluate(ctx, a)
			if err != nil {
				return nil, fmt.Errorf("backtest %s at bar %d: %w", pair, i, err)
			}
			if d != nil {
				pending = d
			}
		}
	}
	if s.pos != nil {
		lastBar := ltf[len(ltf)-1]
		s.close(lastBar.Close, lastBar.Timestamp, types.ExitManual)
	}

	return e.summarize(pair, s, ltf), nil
}

// open fills a decision at the bar's open. Stops and targets shift with the
// fill so the ATR geometry survives the signal-to-fill gap.
func (s *sim) open(d *types.Decision, bar types.Candle, leverage float64) {
	fill := bar.Open
	if fill <= 0 {
		return
	}
	slOff := d.StopLoss - d.EntryPrice
	tpOff := d.TakeProfit - d.EntryPrice
	s.pos = &types.Position{
		ID:         uuid.NewString(),
		Pair:       d.Pair,
		Strategy:   d.Strategy,
		TradeType:  types.TradeDirectional,
		Direction:  d.Direction,
		EntryPrice: fill,
		Size:       d.SizeUSD,
		Leverage:   leverage,
		StopLoss:   types.Float64(fill + slOff),
		TakeProfit: types.Float64(fill + tpOff),
		Status:     types.StatusOpen,
		OpenedAt:   bar.Timestamp,
	}
}

// checkExits applies the monitor's priority against one replay bar's OHLC.
// Liquidation is not modeled: the sizer's caps keep simulated losses far
// from maintenance margin at these leverages.
func (e *Engine) checkExits(s *sim, bar types.Candle) {
	pos := s.pos
	mon := e.cfg.Monitor

	// Trailing stop. Peak advances on the bar's favorable extreme, the
	// retracement check uses the close.
	favorable := bar.High
	if pos.Direction == types.Short {
		favorable = bar.Low
	}
	if pct := pos.UnrealizedPnlPct(favorable); pct > pos.PeakPnlPct {
		pos.PeakPnlPct = pct
	}
	if pos.PeakPnlPct >= mon.TrailingActivationPct {
		threshold := pos.PeakPnlPct * mon.TrailingRetracement
		if mon.TrailingOffsetPct > 0 {
			threshold = pos.PeakPnlPct - mon.TrailingOffsetPct
		}
		if pos.UnrealizedPnlPct(bar.Close) <= threshold {
			s.close(bar.Close, bar.Timestamp, types.ExitTrailingStop)
			return
		}
	}

	if mon.StagnationMinutes > 0 {
		limit := time.Duration(mon.StagnationMinutes) * time.Minute
		if bar.Timestamp.Sub(pos.OpenedAt) >= limit {
			s.close(bar.Close, bar.Timestamp, types.ExitStagnation)
			return
		}
	}

	// Stop-loss wins when the bar sweeps both levels.
	if pos.Direction == types.Long {
		if pos.StopLoss != nil && bar.Low <= *pos.StopLoss {
			s.close(*pos.StopLoss, bar.Timestamp, types.ExitStopLoss)
			return
		}
		if pos.TakeProfit != nil && bar.High >= *pos.TakeProfit {
			s.close(*pos.TakeProfit, bar.Timestamp, types.ExitTakeProfit)
		}
		return
	}
	if pos.StopLoss != nil && bar.High >= *pos.StopLoss {
		s.close(*pos.StopLoss, bar.Timestamp, types.ExitStopLoss)
		return
	}
	if pos.TakeProfit != nil && bar.Low <= *pos.TakeProfit {
		s.close(*pos.TakeProfit, bar.Timestamp, types.ExitTakeProfit)
	}
}

// buildAnalysis assembles the snapshot a live cycle would have produced at
// this bar: only candles at or before the bar's timestamp are visible.
func (e *Engine) buildAnalysis(pair string, ltf, htf []types.Candle) *types.PairAnalysis {
	bar := ltf[len(ltf)-1]
	htfVisible := htf[:0]
	for i, c := range htf {
		if c.Timestamp.After(bar.Timestamp) {
			htfVisible = htf[:i]
			break
		}
		htfVisible = htf[:i+1]
	}

	execInd := indicator.Compute(ltf)
	htfInd := indicator.Compute(htfVisible)
	return &types.PairAnalysis{
		Pair:      pair,
		Timestamp: bar.Timestamp,
		MarkPrice: bar.Close,
		Indicators: map[string]*types.TechnicalIndicators{
			e.cfg.Trading.Interval:    execInd,
			e.cfg.Trading.HTFInterval: htfInd,
		},
		Candles: map[string][]types.Candle{
			e.cfg.Trading.Interval:    ltf,
			e.cfg.Trading.HTFInterval: htfVisible,
		},
		Regime: market.ClassifyRegime(execInd, bar.Close),
	}
}

// summarize computes the per-pair aggregates.
func (e *Engine) summarize(pair string, s *sim, ltf []types.Candle) *Result {
	res := &Result{
		Pair:         pair,
		Trades:       s.trades,
		FinalBalance: s.balance,
	}
	initial := e.cfg.Trading.Balance
	if initial > 0 {
		res.TotalReturn = (s.balance - initial) / initial * 100
	}

	wins := 0
	for _, t := range s.trades {
		if t.Pnl > 0 {
			wins++
		}
	}
	if len(s.trades) > 0 {
		res.WinRate = float64(wins) / float64(len(s.trades))
	}

	res.MaxDrawdown = maxDrawdown(s.equity)
	res.Sharpe = annualizedSharpe(s.trades, ltf)
	return res
}

// maxDrawdown is the worst peak-to-trough decline on the equity curve, in
// percent.
func maxDrawdown(equity []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// annualizedSharpe derives the ratio from per-trade return percentages,
// scaled by the trade frequency over the replay span. Zero when fewer than
// two trades or when returns have no variance.
func annualizedSharpe(trades []types.TradeRecord, ltf []types.Candle) float64 {
	if len(trades) < 2 || len(ltf) < 2 {
		return 0
	}
	returns := make([]float64, len(trades))
	for i, t := range trades {
		if t.Size > 0 {
			returns[i] = t.Pnl / t.Size
		}
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance <= 0 {
		return 0
	}

	span := ltf[len(ltf)-1].Timestamp.Sub(ltf[0].Timestamp)
	if span <= 0 {
		return 0
	}
	tradesPerYear := float64(len(trades)) / span.Hours() * 24 * 365
	return mean / math.Sqrt(variance) * math.Sqrt(tradesPerYear)
}
