package strategy

import (
	"context"
	"math"
	"testing"

	"github.com/evdnx/goqe/testutils"
	"github.com/evdnx/goqe/types"
)

func vwapIndicators(vwap float64) *types.TechnicalIndicators {
	return &types.TechnicalIndicators{
		VWAP: types.Float64(vwap),
		ATR:  types.Float64(1),
	}
}

// Price 1.5% under VWAP with a 1% threshold: long, confidence 55.
func TestVWAPReversionLong(t *testing.T) {
	v := NewVWAP(testBase(t))
	a := analysis("BTCUSDT", 98.5, types.RegimeRanging, vwapIndicators(100))

	d, err := v.Evaluate(context.Background(), a)
	d = mustDecide(t, d, err, types.Long)
	if math.Abs(d.Confidence-55) > 1e-9 {
		t.Fatalf("confidence: want 55, got %f", d.Confidence)
	}
}

func TestVWAPReversionShort(t *testing.T) {
	v := NewVWAP(testBase(t))
	a := analysis("BTCUSDT", 101.5, types.RegimeRanging, vwapIndicators(100))

	d, err := v.Evaluate(context.Background(), a)
	mustDecide(t, d, err, types.Short)
}

// Inside the deviation threshold nothing fires.
func TestVWAPInsideThreshold(t *testing.T) {
	v := NewVWAP(testBase(t))
	a := analysis("BTCUSDT", 99.5, types.RegimeRanging, vwapIndicators(100))

	d, err := v.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}

// The HTF veto: price is 1.5% under the 5m VWAP (long signal) but also
// 2.5% under the 1h VWAP, past the 2% conflict threshold. The stretch is
// session-wide, so the reversion is vetoed and logged as such.
func TestVWAPHTFVeto(t *testing.T) {
	base := testBase(t)
	log := testutils.NewMockLogger()
	base.Log = log
	v := NewVWAP(base)
	a := analysis("BTCUSDT", 98.5, types.RegimeRanging, vwapIndicators(100))
	a.Indicators["1h"] = vwapIndicators(98.5 / 0.975) // htf dev = -2.5%

	d, err := v.Evaluate(context.Background(), a)
	mustPass(t, d, err)
	if log.LastMessage() != "vwap_htf_veto" {
		t.Fatalf("veto must be logged, last message %q", log.LastMessage())
	}

	// An HTF stretched the other way does not veto a long.
	a.Indicators["1h"] = vwapIndicators(96)
	d, err = v.Evaluate(context.Background(), a)
	mustDecide(t, d, err, types.Long)
}

// Confidence from the stretch is capped at +30 over the base 50.
func TestVWAPConfidenceCap(t *testing.T) {
	v := NewVWAP(testBase(t))
	a := analysis("BTCUSDT", 90, types.RegimeRanging, vwapIndicators(100)) // dev -10%

	d, err := v.Evaluate(context.Background(), a)
	d = mustDecide(t, d, err, types.Long)
	if math.Abs(d.Confidence-80) > 1e-9 {
		t.Fatalf("confidence: want 80 (50+30 cap), got %f", d.Confidence)
	}
}
