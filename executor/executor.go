// Package executor places and settles orders. The paper executor simulates
// fills against a virtual balance; the live executor sends market orders to
// the venue. Everything above this package is executor-agnostic.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/types"
)

// ErrInsufficientBalance is returned when an open would commit more margin
// than the account holds.
var ErrInsufficientBalance = errors.New("executor: insufficient balance")

// OpenRequest carries everything needed to open a position.
type OpenRequest struct {
	Pair      string
	Strategy  string
	TradeType types.TradeType
	Direction types.Side

	Price     float64 // entry mark price
	MarginUSD float64 // capital committed; notional = margin * leverage
	Leverage  float64

	StopLoss   *float64
	TakeProfit *float64

	// HedgePrice records a virtual spot hedge for funding positions.
	HedgePrice *float64
}

// Executor opens and closes positions and reports the account balance.
type Executor interface {
	Open(ctx context.Context, req OpenRequest) (*types.Position, error)
	Close(ctx context.Context, pos *types.Position, price float64, reason types.ExitReason) (*types.TradeRecord, error)
	Balance(ctx context.Context) (float64, error)
}

// PaperExecutor simulates execution against an in-memory balance. Fees are
// charged as a single round-trip rate on notional at close; a liquidation
// forfeits the full margin plus the configured penalty.
type PaperExecutor struct {
	feeRate    float64
	penaltyPct float64

	mu      sync.Mutex
	balance float64
	// funding accrued per open position, settled into PnL at close
	accrued map[string]float64

	now func() time.Time
}

// NewPaperExecutor builds a simulator with the given starting balance.
func NewPaperExecutor(balance float64, cfg config.MonitorConfig) *PaperExecutor {
	return &PaperExecutor{
		feeRate:    cfg.FeeRate,
		penaltyPct: cfg.LiquidationPenaltyPct,
		balance:    balance,
		accrued:    make(map[string]float64),
		now:        time.Now,
	}
}

// Open reserves margin and returns the new position. Margin stays counted in
// the balance; only realized PnL and fees move it.
func (e *PaperExecutor) Open(_ context.Context, req OpenRequest) (*types.Position, error) {
	if req.Price <= 0 || req.MarginUSD <= 0 || req.Leverage <= 0 {
		return nil, fmt.Errorf("executor: bad open request %s: price=%f margin=%f lev=%f",
			req.Pair, req.Price, req.MarginUSD, req.Leverage)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if req.MarginUSD > e.balance {
		return nil, ErrInsufficientBalance
	}
	return &types.Position{
		ID:         uuid.NewString(),
		Pair:       req.Pair,
		Strategy:   req.Strategy,
		TradeType:  req.TradeType,
		Direction:  req.Direction,
		EntryPrice: req.Price,
		Size:       req.MarginUSD,
		Leverage:   req.Leverage,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		HedgePrice: req.HedgePrice,
		Status:     types.StatusOpen,
		OpenedAt:   e.now(),
	}, nil
}

// Close settles the position at the given price, applies fees and accrued
// funding, mutates the position into its closed state and returns the trade
// record.
func (e *PaperExecutor) Close(_ context.Context, pos *types.Position, price float64, reason types.ExitReason) (*types.TradeRecord, error) {
	if pos.Status == types.StatusClosed {
		return nil, fmt.Errorf("executor: position %s already closed", pos.ID)
	}
	if price <= 0 {
		return nil, fmt.Errorf("executor: bad close price %f for %s", price, pos.Pair)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var pnl float64
	if reason == types.ExitLiquidation {
		// Margin is gone, penalty on top. The exchange would not return
		// anything from a liquidated isolated position.
		pnl = -pos.Size * (1 + e.penaltyPct/100)
	} else {
		pnl = pos.UnrealizedPnl(price) - e.feeRate*pos.Notional()
	}
	pnl += e.accrued[pos.ID]
	delete(e.accrued, pos.ID)

	e.balance += pnl

	closedAt := e.now()
	pos.Status = types.StatusClosed
	pos.ClosedAt = &closedAt
	pos.ExitPrice = types.Float64(price)
	pos.RealizedPnl = types.Float64(pnl)
	pos.ExitReason = reason

	return &types.TradeRecord{
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
		ClosedAt:   closedAt,
	}, nil
}

// Balance returns the current simulated balance.
func (e *PaperExecutor) Balance(_ context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, nil
}

// AccrueFunding books a funding payment (positive = received) against an
// open position. It settles into realized PnL when the position closes.
func (e *PaperExecutor) AccrueFunding(positionID string, usd float64) {
	e.mu.Lock()
	e.accrued[positionID] += usd
	e.mu.Unlock()
}
