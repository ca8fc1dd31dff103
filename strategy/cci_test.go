package strategy

import (
	"context"
	"math"
	"testing"

	"github.com/evdnx/goqe/types"
)

func cciIndicators(prev, cur float64) *types.TechnicalIndicators {
	return &types.TechnicalIndicators{
		CCI:     types.Float64(cur),
		PrevCCI: types.Float64(prev),
		ATR:     types.Float64(1),
	}
}

// CCI crossing up through +100 with a daily uptrend: long, confidence
// 55 + (120-100)*0.1 = 57.
func TestCCICrossUpWithTrend(t *testing.T) {
	c := NewCCITrend(testBase(t), dailyCacheFor("BTCUSDT", 1))
	a := analysis("BTCUSDT", 100, types.RegimeTrending, cciIndicators(90, 120))

	d, err := c.Evaluate(context.Background(), a)
	d = mustDecide(t, d, err, types.Long)
	if math.Abs(d.Confidence-57) > 1e-9 {
		t.Fatalf("confidence: want 57, got %f", d.Confidence)
	}
}

func TestCCICrossDownWithTrend(t *testing.T) {
	c := NewCCITrend(testBase(t), dailyCacheFor("BTCUSDT", -1))
	a := analysis("BTCUSDT", 100, types.RegimeTrending, cciIndicators(-90, -120))

	d, err := c.Evaluate(context.Background(), a)
	mustDecide(t, d, err, types.Short)
}

// Already outside the band on the previous bar: not a crossing.
func TestCCINoCross(t *testing.T) {
	c := NewCCITrend(testBase(t), dailyCacheFor("BTCUSDT", 1))
	a := analysis("BTCUSDT", 100, types.RegimeTrending, cciIndicators(120, 130))

	d, err := c.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}

// A cross against the daily trend is filtered out.
func TestCCICrossAgainstTrend(t *testing.T) {
	c := NewCCITrend(testBase(t), dailyCacheFor("BTCUSDT", -1))
	a := analysis("BTCUSDT", 100, types.RegimeTrending, cciIndicators(90, 120))

	d, err := c.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}

// The boost from CCI magnitude caps at +20.
func TestCCIConfidenceCap(t *testing.T) {
	c := NewCCITrend(testBase(t), dailyCacheFor("BTCUSDT", 1))
	a := analysis("BTCUSDT", 100, types.RegimeTrending, cciIndicators(90, 500))

	d, err := c.Evaluate(context.Background(), a)
	d = mustDecide(t, d, err, types.Long)
	if math.Abs(d.Confidence-75) > 1e-9 {
		t.Fatalf("confidence: want 75 (55+20 cap), got %f", d.Confidence)
	}
}
