// Package engine is the runtime that drives the trading loops: the
// per-pair evaluation cycle, the position monitor and the funding scanner,
// each an interval task under one cancellation scope.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/executor"
	"github.com/evdnx/goqe/funding"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/market"
	"github.com/evdnx/goqe/metrics"
	"github.com/evdnx/goqe/notify"
	"github.com/evdnx/goqe/position"
	"github.com/evdnx/goqe/recorder"
	"github.com/evdnx/goqe/risk"
	"github.com/evdnx/goqe/strategy"
	"github.com/evdnx/goqe/types"
)

// Engine owns the component graph and the task lifecycle. Start is a no-op
// while already running.
type Engine struct {
	cfg      *config.Config
	client   exchange.Client
	exec     executor.Executor
	log      logger.Logger
	notifier notify.Notifier
	rec      recorder.Recorder

	pipeline   *market.Pipeline
	store      *position.Store
	gate       *risk.Gate
	strategies []strategy.Strategy
	monitor    *position.Monitor
	funding    *funding.Engine

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	balMu       sync.RWMutex
	lastBalance float64
}

// New wires the full component graph.
func New(cfg *config.Config, client exchange.Client, exec executor.Executor, notifier notify.Notifier, rec recorder.Recorder, log logger.Logger) *Engine {
	e := &Engine{
		cfg:         cfg,
		client:      client,
		exec:        exec,
		log:         log,
		notifier:    notifier,
		rec:         rec,
		pipeline:    market.NewPipeline(client, log, cfg.Trading.Interval, cfg.Trading.HTFInterval),
		store:       position.NewStore(),
		lastBalance: cfg.Trading.Balance,
	}
	e.gate = risk.NewGate(cfg.Risk, cfg.Trading.Balance, log)

	base := strategy.Base{
		Cfg:      cfg.Strategy,
		Log:      log,
		Interval: cfg.Trading.Interval,
		HTF:      cfg.Trading.HTFInterval,
		Sizer:    risk.NewSizer(cfg.Sizer, cfg.Strategy.RewardRisk, cfg.Trading.Leverage),
		Funds:    e.funds,
	}
	daily := market.NewDailyCache(client, log)
	e.strategies = []strategy.Strategy{
		strategy.NewRule(base),
		strategy.NewVWAP(base),
		strategy.NewBreakout(base),
		strategy.NewPSAR(base, daily),
		strategy.NewCCITrend(base, daily),
		strategy.NewMicro(base),
	}

	e.monitor = position.NewMonitor(cfg.Monitor, e.store, exec, client, log, cfg.Trading.Paper, e.onClose)
	e.funding = funding.NewEngine(cfg.Funding, cfg.Trading.Pairs, client, exec, e.store, e.gate, log, e.onClose)
	return e
}

// Gate exposes the risk gate for operator surfaces.
func (e *Engine) Gate() *risk.Gate { return e.gate }

// SetNotifier swaps the event sink. Must be called before Start.
func (e *Engine) SetNotifier(n notify.Notifier) { e.notifier = n }

// Store exposes the position book.
func (e *Engine) Store() *position.Store { return e.store }

// funds reports the cached balance and the remaining exposure headroom.
func (e *Engine) funds() (float64, float64) {
	e.balMu.RLock()
	bal := e.lastBalance
	e.balMu.RUnlock()
	return bal, e.gate.ExposureHeadroom(e.store.Exposure())
}

// onClose runs off the closing goroutine after a position is already
// settled and persisted. It feeds the gate, the recorder and the operator.
func (e *Engine) onClose(rec types.TradeRecord) {
	e.gate.RecordRealizedPnl(rec.Pnl)
	e.rec.RecordTrade(rec)
	e.notifier.TradeClosed(rec)
}

// Start launches the loops. Calling it on a running engine does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.log.Warn("engine_start_ignored_already_running")
		return
	}
	e.running = true
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(3)
	go func() {
		defer e.wg.Done()
		e.evalLoop(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.monitor.Run(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.funding.Run(ctx)
	}()
	e.log.Info("engine_started",
		logger.Int("pairs", len(e.cfg.Trading.Pairs)),
		logger.Int("strategies", len(e.strategies)),
		logger.Bool("paper", e.cfg.Trading.Paper),
	)
}

// Stop cancels the loops and waits for them to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.running = false
	e.log.Info("engine_stopped")
}

func (e *Engine) evalLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(e.cfg.Trading.EvalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Cycle(ctx)
		}
	}
}

// Cycle runs one full evaluation pass. A total price-endpoint failure
// aborts this cycle only; per-pair and per-engine failures are isolated.
func (e *Engine) Cycle(ctx context.Context) {
	e.refreshBalance(ctx)

	prems, err := e.client.Premiums(ctx, e.cfg.Trading.Pairs)
	if err != nil {
		e.log.Error("cycle_price_fetch_failed", logger.Err(err))
		return
	}
	for _, pair := range e.cfg.Trading.Pairs {
		prem, ok := prems[pair]
		if !ok || prem.MarkPrice <= 0 {
			e.log.Warn("cycle_pair_skipped", logger.String("pair", pair))
			metrics.PairSkips.WithLabelValues("cycle").Inc()
			continue
		}
		e.evaluatePair(ctx, pair, prem)
	}
	e.balMu.RLock()
	e.rec.RecordEquity(e.lastBalance, time.Now())
	e.balMu.RUnlock()
	metrics.EquityGauge.Set(e.lastBalance)
}

func (e *Engine) refreshBalance(ctx context.Context) {
	bal, err := e.exec.Balance(ctx)
	if err != nil {
		e.log.Warn("balance_refresh_failed", logger.Err(err))
		return
	}
	e.balMu.Lock()
	e.lastBalance = bal
	e.balMu.Unlock()
}

// evaluatePair builds the snapshot once and runs every engine over it until
// one opens. The directional slot for the pair then stays filled until the
// monitor frees it.
func (e *Engine) evaluatePair(ctx context.Context, pair string, prem exchange.Premium) {
	if e.store.HasOpen(pair, types.TradeDirectional) {
		return
	}
	if !e.gate.CanTrade() {
		return
	}

	analysis, err := e.pipeline.Analyze(ctx, pair, prem)
	if err != nil {
		e.log.Warn("cycle_analysis_failed",
			logger.String("pair", pair),
			logger.Err(err),
		)
		metrics.PairSkips.WithLabelValues("analysis").Inc()
		return
	}

	for _, strat := range e.strategies {
		d := e.evaluateOne(ctx, strat, analysis)
		if d == nil {
			continue
		}
		if e.open(ctx, d) {
			return
		}
	}
}

// evaluateOne shields the cycle from a single engine's panic or error.
func (e *Engine) evaluateOne(ctx context.Context, strat strategy.Strategy, a *types.PairAnalysis) (d *types.Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("strategy_panic",
				logger.String("strategy", strat.Name()),
				logger.String("pair", a.Pair),
				logger.Any("panic", r),
			)
			d = nil
		}
	}()
	d, err := strat.Evaluate(ctx, a)
	if err != nil {
		e.log.Warn("strategy_evaluate_failed",
			logger.String("strategy", strat.Name()),
			logger.String("pair", a.Pair),
			logger.Err(err),
		)
		return nil
	}
	return d
}

// open pushes an accepted decision through the gate and the executor.
// Returns true when a position was actually opened.
func (e *Engine) open(ctx context.Context, d *types.Decision) bool {
	leverage := e.cfg.Trading.Leverage
	notional := d.SizeUSD * leverage
	if err := e.gate.CheckOpen(e.store.OpenCount(), e.store.Exposure(), notional); err != nil {
		e.log.Info("open_blocked",
			logger.String("pair", d.Pair),
			logger.String("strategy", d.Strategy),
			logger.Err(err),
		)
		metrics.OpensRejected.WithLabelValues("gate").Inc()
		return false
	}

	pos, err := e.exec.Open(ctx, executor.OpenRequest{
		Pair:       d.Pair,
		Strategy:   d.Strategy,
		TradeType:  types.TradeDirectional,
		Direction:  d.Direction,
		Price:      d.EntryPrice,
		MarginUSD:  d.SizeUSD,
		Leverage:   leverage,
		StopLoss:   types.Float64(d.StopLoss),
		TakeProfit: types.Float64(d.TakeProfit),
	})
	if err != nil {
		e.log.Error("open_failed",
			logger.String("pair", d.Pair),
			logger.String("strategy", d.Strategy),
			logger.Err(err),
		)
		metrics.OpensRejected.WithLabelValues("executor").Inc()
		return false
	}
	if err := e.store.Add(pos); err != nil {
		if !errors.Is(err, position.ErrDuplicate) {
			e.log.Error("store_add_failed", logger.Err(err))
		}
		// Lost the check-then-open race; unwind immediately.
		if _, cerr := e.exec.Close(ctx, pos, d.EntryPrice, types.ExitManual); cerr != nil {
			e.log.Error("open_unwind_failed", logger.Err(cerr))
		}
		return false
	}

	metrics.OpensExecuted.WithLabelValues(string(types.TradeDirectional)).Inc()
	metrics.PositionsOpen.Set(float64(e.store.OpenCount()))
	e.log.Info("position_opened",
		logger.String("pair", d.Pair),
		logger.String("strategy", d.Strategy),
		logger.String("direction", string(d.Direction)),
		logger.Float64("entry", pos.EntryPrice),
		logger.Float64("margin", pos.Size),
		logger.String("reasoning", d.Reasoning),
	)
	e.notifier.PositionOpened(pos)
	return true
}
