package types

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------
// Decision level geometry
// ---------------------------------------------------------------------
//
// Longs need stop < entry < target, shorts the mirror image. Anything else
// is a bug upstream and must never reach the executor.
func TestDecisionValidate(t *testing.T) {
	long := Decision{
		Pair: "BTCUSDT", Strategy: "test", Direction: Long,
		EntryPrice: 100, StopLoss: 95, TakeProfit: 110, Confidence: 60,
	}
	if err := long.Validate(); err != nil {
		t.Fatalf("valid long rejected: %v", err)
	}

	short := Decision{
		Pair: "BTCUSDT", Strategy: "test", Direction: Short,
		EntryPrice: 100, StopLoss: 105, TakeProfit: 90, Confidence: 60,
	}
	if err := short.Validate(); err != nil {
		t.Fatalf("valid short rejected: %v", err)
	}

	bad := []Decision{
		// long with stop above entry
		{Pair: "X", Strategy: "t", Direction: Long, EntryPrice: 100, StopLoss: 105, TakeProfit: 110, Confidence: 50},
		// short with target above entry
		{Pair: "X", Strategy: "t", Direction: Short, EntryPrice: 100, StopLoss: 105, TakeProfit: 103, Confidence: 50},
		// non-finite stop
		{Pair: "X", Strategy: "t", Direction: Long, EntryPrice: 100, StopLoss: math.NaN(), TakeProfit: 110, Confidence: 50},
		// negative entry
		{Pair: "X", Strategy: "t", Direction: Long, EntryPrice: -1, StopLoss: 95, TakeProfit: 110, Confidence: 50},
		// confidence above the cap
		{Pair: "X", Strategy: "t", Direction: Long, EntryPrice: 100, StopLoss: 95, TakeProfit: 110, Confidence: 95},
		// unknown direction
		{Pair: "X", Strategy: "t", Direction: "sideways", EntryPrice: 100, StopLoss: 95, TakeProfit: 110, Confidence: 50},
	}
	for i, d := range bad {
		if err := d.Validate(); err == nil {
			t.Fatalf("bad decision %d passed validation", i)
		}
	}
}

// ---------------------------------------------------------------------
// Position PnL
// ---------------------------------------------------------------------
//
// Size is margin; notional is size*leverage, and PnL percent is measured
// against the margin. A 5% move at 3x is 15% on margin.
func TestPositionPnl(t *testing.T) {
	long := Position{Direction: Long, EntryPrice: 100, Size: 200, Leverage: 3}
	if n := long.Notional(); n != 600 {
		t.Fatalf("notional: want 600, got %f", n)
	}
	if pnl := long.UnrealizedPnl(105); math.Abs(pnl-30) > 1e-9 {
		t.Fatalf("long pnl at 105: want 30, got %f", pnl)
	}
	if pct := long.UnrealizedPnlPct(105); math.Abs(pct-15) > 1e-9 {
		t.Fatalf("long pnl pct at 105: want 15, got %f", pct)
	}

	short := Position{Direction: Short, EntryPrice: 100, Size: 200, Leverage: 3}
	if pnl := short.UnrealizedPnl(105); math.Abs(pnl+30) > 1e-9 {
		t.Fatalf("short pnl at 105: want -30, got %f", pnl)
	}
	if pnl := short.UnrealizedPnl(90); math.Abs(pnl-60) > 1e-9 {
		t.Fatalf("short pnl at 90: want 60, got %f", pnl)
	}
}
