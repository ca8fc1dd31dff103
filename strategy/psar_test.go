package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/market"
	"github.com/evdnx/goqe/testutils"
	"github.com/evdnx/goqe/types"
)

// dailyCacheFor scripts a daily series for the pair and returns a cache
// over it. A positive slope yields a Long daily trend, negative a Short.
func dailyCacheFor(pair string, slope float64) *market.DailyCache {
	client := testutils.NewMockClient()
	client.SetCandles(pair, "1d", testutils.RampCandles(60, 100, slope))
	return market.NewDailyCache(client, logger.NewNop())
}

// twoBars yields an execution series whose last two closes are prev and cur.
func twoBars(prev, cur float64) []types.Candle {
	ts := testutils.T0
	return []types.Candle{
		{Timestamp: ts, Open: prev, High: prev + 1, Low: prev - 1, Close: prev, Volume: 100},
		{Timestamp: ts.Add(5 * time.Minute), Open: prev, High: cur + 1, Low: prev - 1, Close: cur, Volume: 100},
	}
}

func psarIndicators(prevSAR, sar float64) *types.TechnicalIndicators {
	return &types.TechnicalIndicators{
		PSAR:     types.Float64(sar),
		PrevPSAR: types.Float64(prevSAR),
		ATR:      types.Float64(1),
	}
}

// SAR above the previous close, below the current one: a bullish flip.
// The daily uptrend admits the long.
func TestPSARBullFlipWithTrend(t *testing.T) {
	p := NewPSAR(testBase(t), dailyCacheFor("BTCUSDT", 1))
	a := analysis("BTCUSDT", 102, types.RegimeTrending, psarIndicators(103, 99))
	a.Candles["5m"] = twoBars(101, 102)

	d, err := p.Evaluate(context.Background(), a)
	d = mustDecide(t, d, err, types.Long)
	if d.Confidence != 60 {
		t.Fatalf("confidence: want 60, got %f", d.Confidence)
	}
}

// The same bullish flip against a daily downtrend stays on the sidelines.
func TestPSARFlipAgainstTrend(t *testing.T) {
	p := NewPSAR(testBase(t), dailyCacheFor("BTCUSDT", -1))
	a := analysis("BTCUSDT", 102, types.RegimeTrending, psarIndicators(103, 99))
	a.Candles["5m"] = twoBars(101, 102)

	d, err := p.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}

func TestPSARBearFlipWithTrend(t *testing.T) {
	p := NewPSAR(testBase(t), dailyCacheFor("BTCUSDT", -1))
	a := analysis("BTCUSDT", 98, types.RegimeTrending, psarIndicators(97, 101))
	a.Candles["5m"] = twoBars(99, 98)

	d, err := p.Evaluate(context.Background(), a)
	mustDecide(t, d, err, types.Short)
}

// SAR staying on one side of price is not a flip.
func TestPSARNoFlip(t *testing.T) {
	p := NewPSAR(testBase(t), dailyCacheFor("BTCUSDT", 1))
	// SAR below both closes: still in the same bullish phase.
	a := analysis("BTCUSDT", 102, types.RegimeTrending, psarIndicators(98, 99))
	a.Candles["5m"] = twoBars(101, 102)

	d, err := p.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}

// No daily series at all: the trend filter forbids everything.
func TestPSARNoDailySeries(t *testing.T) {
	cache := market.NewDailyCache(testutils.NewMockClient(), logger.NewNop())
	p := NewPSAR(testBase(t), cache)
	a := analysis("BTCUSDT", 102, types.RegimeTrending, psarIndicators(103, 99))
	a.Candles["5m"] = twoBars(101, 102)

	d, err := p.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}
