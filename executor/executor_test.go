package executor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/types"
)

func newPaper(balance float64) *PaperExecutor {
	return NewPaperExecutor(balance, config.MonitorConfig{
		FeeRate:               0.0008,
		LiquidationPenaltyPct: 1,
	})
}

func openReq() OpenRequest {
	return OpenRequest{
		Pair:      "BTCUSDT",
		Strategy:  "test",
		TradeType: types.TradeDirectional,
		Direction: types.Long,
		Price:     100,
		MarginUSD: 200,
		Leverage:  3,
	}
}

// ---------------------------------------------------------------------
// Paper round trip
// ---------------------------------------------------------------------
//
// A 5% move on 600 notional is +30; the round-trip fee is 0.0008*600 =
// 0.48, so the balance ends at 10,029.52.
func TestPaperRoundTrip(t *testing.T) {
	e := newPaper(10_000)
	ctx := context.Background()

	pos, err := e.Open(ctx, openReq())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if pos.Status != types.StatusOpen || pos.ID == "" {
		t.Fatalf("open returned a malformed position: %+v", pos)
	}

	rec, err := e.Close(ctx, pos, 105, types.ExitTakeProfit)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	wantPnl := 30 - 0.0008*600
	if math.Abs(rec.Pnl-wantPnl) > 1e-9 {
		t.Fatalf("pnl: want %f, got %f", wantPnl, rec.Pnl)
	}
	if pos.Status != types.StatusClosed || pos.ExitPrice == nil || *pos.ExitPrice != 105 {
		t.Fatalf("close did not persist the exit state: %+v", pos)
	}

	bal, _ := e.Balance(ctx)
	if math.Abs(bal-(10_000+wantPnl)) > 1e-9 {
		t.Fatalf("balance: want %f, got %f", 10_000+wantPnl, bal)
	}
}

// A liquidation forfeits the margin plus the penalty, regardless of where
// the mark sits.
func TestPaperLiquidationPenalty(t *testing.T) {
	e := newPaper(10_000)
	ctx := context.Background()

	pos, _ := e.Open(ctx, openReq())
	rec, err := e.Close(ctx, pos, 67, types.ExitLiquidation)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if math.Abs(rec.Pnl-(-202)) > 1e-9 {
		t.Fatalf("liquidation pnl: want -202 (margin + 1%% penalty), got %f", rec.Pnl)
	}
}

// Accrued funding settles into the realized PnL at close.
func TestPaperFundingAccrual(t *testing.T) {
	e := newPaper(10_000)
	ctx := context.Background()

	pos, _ := e.Open(ctx, openReq())
	e.AccrueFunding(pos.ID, 1.5)
	e.AccrueFunding(pos.ID, 0.5)

	rec, err := e.Close(ctx, pos, 100, types.ExitManual)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	wantPnl := -0.0008*600 + 2.0
	if math.Abs(rec.Pnl-wantPnl) > 1e-9 {
		t.Fatalf("pnl with funding: want %f, got %f", wantPnl, rec.Pnl)
	}
}

func TestPaperRejectsBadRequests(t *testing.T) {
	e := newPaper(100)
	ctx := context.Background()

	req := openReq() // margin 200 > balance 100
	if _, err := e.Open(ctx, req); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	req.MarginUSD = 50
	pos, err := e.Open(ctx, req)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := e.Close(ctx, pos, 101, types.ExitManual); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := e.Close(ctx, pos, 101, types.ExitManual); err == nil {
		t.Fatalf("double close must fail")
	}
	if _, err := e.Close(ctx, &types.Position{Status: types.StatusOpen, Pair: "X"}, 0, types.ExitManual); err == nil {
		t.Fatalf("non-positive close price must fail")
	}
}
