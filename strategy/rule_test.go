package strategy

import (
	"context"
	"testing"

	"github.com/evdnx/goqe/types"
)

// ---------------------------------------------------------------------
// Ranging branch: RSI extreme at a Bollinger band edge
// ---------------------------------------------------------------------

func rangingIndicators(rsi, mark float64) *types.TechnicalIndicators {
	return &types.TechnicalIndicators{
		RSI:     types.Float64(rsi),
		ATR:     types.Float64(1),
		BBUpper: types.Float64(mark + 5),
		BBLower: types.Float64(mark - 0.2), // within the 0.5% band edge
	}
}

func TestRuleRangingLong(t *testing.T) {
	r := NewRule(testBase(t))
	a := analysis("BTCUSDT", 100, types.RegimeRanging, rangingIndicators(25, 100))

	d, err := r.Evaluate(context.Background(), a)
	d = mustDecide(t, d, err, types.Long)
	if d.Confidence < 50 || d.Confidence > 90 {
		t.Fatalf("confidence out of range: %f", d.Confidence)
	}
	if d.StopLoss >= d.EntryPrice || d.TakeProfit <= d.EntryPrice {
		t.Fatalf("level geometry wrong: sl=%f entry=%f tp=%f", d.StopLoss, d.EntryPrice, d.TakeProfit)
	}
}

// Oversold RSI but price far from the lower band: no trade.
func TestRuleRangingNeedsBandEdge(t *testing.T) {
	r := NewRule(testBase(t))
	ind := rangingIndicators(25, 100)
	ind.BBLower = types.Float64(95) // 5 away, edge allows 0.5
	d, err := r.Evaluate(context.Background(), analysis("BTCUSDT", 100, types.RegimeRanging, ind))
	mustPass(t, d, err)
}

func TestRuleRangingShort(t *testing.T) {
	r := NewRule(testBase(t))
	ind := &types.TechnicalIndicators{
		RSI:     types.Float64(78),
		ATR:     types.Float64(1),
		BBUpper: types.Float64(100.3),
		BBLower: types.Float64(95),
	}
	d, err := r.Evaluate(context.Background(), analysis("BTCUSDT", 100, types.RegimeRanging, ind))
	mustDecide(t, d, err, types.Short)
}

// ---------------------------------------------------------------------
// Trending branch: RSI pullback confirmed by MACD
// ---------------------------------------------------------------------

func TestRuleTrendingPullback(t *testing.T) {
	r := NewRule(testBase(t))
	ind := &types.TechnicalIndicators{
		RSI:        types.Float64(42),
		ATR:        types.Float64(1),
		MACD:       types.Float64(0.8),
		MACDSignal: types.Float64(0.5),
		MACDHist:   types.Float64(0.3),
	}
	d, err := r.Evaluate(context.Background(), analysis("BTCUSDT", 100, types.RegimeTrending, ind))
	mustDecide(t, d, err, types.Long)

	// MACD disagreeing mutes the pullback.
	ind.MACDHist = types.Float64(-0.3)
	d, err = r.Evaluate(context.Background(), analysis("BTCUSDT", 100, types.RegimeTrending, ind))
	mustPass(t, d, err)
}

// RSI parked at 50 satisfies neither side in a trend: no guess.
func TestRuleTrendingNeutralRSI(t *testing.T) {
	r := NewRule(testBase(t))
	ind := &types.TechnicalIndicators{
		RSI:        types.Float64(50),
		ATR:        types.Float64(1),
		MACD:       types.Float64(0.8),
		MACDSignal: types.Float64(0.5),
		MACDHist:   types.Float64(0.3),
	}
	d, err := r.Evaluate(context.Background(), analysis("BTCUSDT", 100, types.RegimeTrending, ind))
	mustPass(t, d, err)
}
