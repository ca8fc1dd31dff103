// Package funding implements the funding-rate carry engine. It runs on its
// own cadence, independent of the directional strategies, and sizes
// positions at a fixed notional rather than through the Kelly sizer.
package funding

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/executor"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/metrics"
	"github.com/evdnx/goqe/position"
	"github.com/evdnx/goqe/risk"
	"github.com/evdnx/goqe/types"
)

// Funding settles every 8 hours, 1095 periods a year.
const (
	periodsPerYear = 3 * 365
	fundingPeriod  = 8 * time.Hour
)

// Accruer is implemented by executors that simulate funding settlement.
// A live account receives funding from the venue itself.
type Accruer interface {
	AccrueFunding(positionID string, usd float64)
}

// Engine opens a carry position when a pair's annualized funding rate
// crosses the entry threshold and closes it when the rate flips sign
// against the position or decays below the exit threshold. Price-based
// exits (stop, take-profit, liquidation) stay with the position monitor.
type Engine struct {
	cfg     config.FundingConfig
	pairs   []string
	client  exchange.Client
	exec    executor.Executor
	accruer Accruer
	store   *position.Store
	gate    *risk.Gate
	log     logger.Logger
	onClose func(types.TradeRecord)
	now     func() time.Time

	// settlement watermark per open position ID
	accruedThrough map[string]time.Time
}

// NewEngine wires the scanner. onClose may be nil.
func NewEngine(cfg config.FundingConfig, pairs []string, client exchange.Client, exec executor.Executor, store *position.Store, gate *risk.Gate, log logger.Logger, onClose func(types.TradeRecord)) *Engine {
	accruer, _ := exec.(Accruer)
	return &Engine{
		cfg:            cfg,
		pairs:          pairs,
		client:         client,
		exec:           exec,
		accruer:        accruer,
		store:          store,
		gate:           gate,
		log:            log,
		onClose:        onClose,
		now:            time.Now,
		accruedThrough: make(map[string]time.Time),
	}
}

// Run scans until the context is canceled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(e.cfg.ScanSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Scan(ctx)
		}
	}
}

// APR annualizes an 8-hour funding rate.
func APR(rate float64) float64 { return rate * periodsPerYear }

// carryDirection is the side that collects the funding payment.
func carryDirection(rate float64) types.Side {
	if rate > 0 {
		return types.Short
	}
	return types.Long
}

// Scan runs one full pass: close checks first so freed slots can be reused
// by the entry pass in the same cycle.
func (e *Engine) Scan(ctx context.Context) {
	prems, err := e.client.Premiums(ctx, e.pairs)
	if err != nil {
		e.log.Warn("funding_scan_fetch_failed", logger.Err(err))
		return
	}
	e.accrue(prems)
	e.closeNormalized(ctx, prems)
	e.openCandidates(ctx, prems)
}

// accrue books the funding payments settled since the last scan for every
// open funding position: each elapsed 8-hour period pays rate x notional to
// the side the rate favors. Live accounts receive funding from the venue
// directly, so there is nothing to book.
func (e *Engine) accrue(prems map[string]exchange.Premium) {
	if e.accruer == nil {
		return
	}
	now := e.now()
	for _, pos := range e.store.OpenByType(types.TradeFunding) {
		prem, ok := prems[pos.Pair]
		if !ok {
			continue
		}
		through, ok := e.accruedThrough[pos.ID]
		if !ok {
			through = pos.OpenedAt
		}
		periods := int(now.Sub(through) / fundingPeriod)
		if periods < 1 {
			e.accruedThrough[pos.ID] = through
			continue
		}
		income := prem.FundingRate * pos.Notional() * float64(periods)
		if pos.Direction == types.Long {
			income = -income
		}
		e.accruer.AccrueFunding(pos.ID, income)
		e.accruedThrough[pos.ID] = through.Add(time.Duration(periods) * fundingPeriod)
		e.log.Info("funding_income_accrued",
			logger.String("pair", pos.Pair),
			logger.Int("periods", periods),
			logger.Float64("income", income),
		)
	}
}

// closeNormalized closes open funding positions whose rate flipped against
// the carry side or decayed under the exit threshold. Rate exits ignore
// price entirely.
func (e *Engine) closeNormalized(ctx context.Context, prems map[string]exchange.Premium) {
	for _, pos := range e.store.OpenByType(types.TradeFunding) {
		prem, ok := prems[pos.Pair]
		if !ok || prem.MarkPrice <= 0 {
			e.log.Warn("funding_pair_skipped", logger.String("pair", pos.Pair))
			metrics.PairSkips.WithLabelValues("funding").Inc()
			continue
		}
		apr := APR(prem.FundingRate)
		flipped := carryDirection(prem.FundingRate) != pos.Direction && prem.FundingRate != 0
		decayed := math.Abs(apr) < e.cfg.ExitAPR
		if !flipped && !decayed {
			continue
		}
		reason := types.ExitFundingNormalized
		if flipped {
			reason = types.ExitFundingFlip
		}

		rec, err := e.exec.Close(ctx, pos, prem.MarkPrice, reason)
		if err != nil {
			e.log.Error("funding_close_failed",
				logger.String("pair", pos.Pair),
				logger.Err(err),
			)
			continue
		}
		e.store.RecordClose(pos.ID, *rec)
		delete(e.accruedThrough, pos.ID)
		metrics.ExitsByReason.WithLabelValues(string(reason)).Inc()
		metrics.PositionsOpen.Set(float64(e.store.OpenCount()))
		e.log.Info("funding_position_closed",
			logger.String("pair", pos.Pair),
			logger.String("reason", string(reason)),
			logger.Float64("apr", apr),
			logger.Float64("pnl", rec.Pnl),
		)
		if e.onClose != nil {
			rec := *rec
			go e.onClose(rec)
		}
	}
}

// openCandidates opens a fixed-notional carry position for every pair whose
// APR clears the entry threshold and whose funding slot is free.
func (e *Engine) openCandidates(ctx context.Context, prems map[string]exchange.Premium) {
	if !e.gate.CanTrade() {
		return
	}
	for _, pair := range e.pairs {
		prem, ok := prems[pair]
		if !ok || prem.MarkPrice <= 0 {
			continue
		}
		apr := APR(prem.FundingRate)
		if math.Abs(apr) < e.cfg.EntryAPR {
			continue
		}
		if e.store.HasOpen(pair, types.TradeFunding) {
			continue
		}
		if err := e.gate.CheckOpen(e.store.OpenCount(), e.store.Exposure(), e.cfg.NotionalUSD); err != nil {
			e.log.Info("funding_open_blocked",
				logger.String("pair", pair),
				logger.Err(err),
			)
			metrics.OpensRejected.WithLabelValues("gate").Inc()
			continue
		}

		dir := carryDirection(prem.FundingRate)
		mark := prem.MarkPrice
		stopDist := mark * e.cfg.StopPct / 100
		var sl, tp float64
		if dir == types.Long {
			sl, tp = mark-stopDist, mark+stopDist
		} else {
			sl, tp = mark+stopDist, mark-stopDist
		}
		req := executor.OpenRequest{
			Pair:       pair,
			Strategy:   "funding-arb",
			TradeType:  types.TradeFunding,
			Direction:  dir,
			Price:      mark,
			MarginUSD:  e.cfg.NotionalUSD / e.cfg.Leverage,
			Leverage:   e.cfg.Leverage,
			StopLoss:   types.Float64(sl),
			TakeProfit: types.Float64(tp),
		}
		if e.cfg.RecordHedge {
			// Virtual spot hedge for delta-neutral accounting only.
			req.HedgePrice = types.Float64(mark)
		}

		pos, err := e.exec.Open(ctx, req)
		if err != nil {
			e.log.Error("funding_open_failed",
				logger.String("pair", pair),
				logger.Err(err),
			)
			metrics.OpensRejected.WithLabelValues("executor").Inc()
			continue
		}
		if err := e.store.Add(pos); err != nil {
			if !errors.Is(err, position.ErrDuplicate) {
				e.log.Error("funding_store_add_failed", logger.Err(err))
			}
			// Lost the check-then-open race; unwind at the same mark.
			if _, cerr := e.exec.Close(ctx, pos, mark, types.ExitManual); cerr != nil {
				e.log.Error("funding_unwind_failed", logger.Err(cerr))
			}
			continue
		}
		metrics.OpensExecuted.WithLabelValues(string(types.TradeFunding)).Inc()
		metrics.PositionsOpen.Set(float64(e.store.OpenCount()))
		e.log.Info("funding_position_opened",
			logger.String("pair", pair),
			logger.String("direction", string(dir)),
			logger.Float64("apr", apr),
			logger.Float64("notional", e.cfg.NotionalUSD),
		)
	}
}
