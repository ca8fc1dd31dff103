package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/evdnx/goqe/types"
)

// channelCandles builds a 21-bar series: twenty bars walled at high/low,
// then one current bar closing at lastClose with lastVol volume.
func channelCandles(high, low, lastClose, lastVol float64) []types.Candle {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, 0, 21)
	for i := 0; i < 20; i++ {
		out = append(out, types.Candle{
			Timestamp: ts.Add(time.Duration(i) * 5 * time.Minute),
			Open:      low, High: high, Low: low, Close: (high + low) / 2,
			Volume: 100,
		})
	}
	out = append(out, types.Candle{
		Timestamp: ts.Add(20 * 5 * time.Minute),
		Open:      (high + low) / 2, High: math.Max(high, lastClose) + 1,
		Low: low, Close: lastClose,
		Volume: lastVol,
	})
	return out
}

func breakoutIndicators(adx, volAvg float64) *types.TechnicalIndicators {
	return &types.TechnicalIndicators{
		ADX:         types.Float64(adx),
		VolumeAvg20: types.Float64(volAvg),
		ATR:         types.Float64(1),
	}
}

// Close above a 20-bar channel high of 100 on 4x volume with ADX 30:
// long, confidence 50 + 2.5 (adx) + 10 (volume) = 62.5.
func TestBreakoutLong(t *testing.T) {
	b := NewBreakout(testBase(t))
	a := analysis("BTCUSDT", 101, types.RegimeTrending, breakoutIndicators(30, 100))
	a.Candles["5m"] = channelCandles(100, 95, 101, 400)

	d, err := b.Evaluate(context.Background(), a)
	d = mustDecide(t, d, err, types.Long)
	if math.Abs(d.Confidence-62.5) > 1e-9 {
		t.Fatalf("confidence: want 62.5, got %f", d.Confidence)
	}
	if d.EntryPrice != 101 {
		t.Fatalf("entry must be the mark, got %f", d.EntryPrice)
	}
}

func TestBreakoutShort(t *testing.T) {
	b := NewBreakout(testBase(t))
	a := analysis("BTCUSDT", 94, types.RegimeTrending, breakoutIndicators(30, 100))
	a.Candles["5m"] = channelCandles(100, 95, 94, 400)

	d, err := b.Evaluate(context.Background(), a)
	mustDecide(t, d, err, types.Short)
}

// Quiet volume kills the breakout even when price clears the channel.
func TestBreakoutNeedsVolumeSpike(t *testing.T) {
	b := NewBreakout(testBase(t))
	a := analysis("BTCUSDT", 101, types.RegimeTrending, breakoutIndicators(30, 100))
	a.Candles["5m"] = channelCandles(100, 95, 101, 150) // 1.5x < 2x

	d, err := b.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}

// A weak trend (ADX under the floor) blocks the entry outright.
func TestBreakoutNeedsADX(t *testing.T) {
	b := NewBreakout(testBase(t))
	a := analysis("BTCUSDT", 101, types.RegimeTrending, breakoutIndicators(20, 100))
	a.Candles["5m"] = channelCandles(100, 95, 101, 400)

	d, err := b.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}

// A close inside the channel is not a breakout.
func TestBreakoutInsideChannel(t *testing.T) {
	b := NewBreakout(testBase(t))
	a := analysis("BTCUSDT", 99, types.RegimeTrending, breakoutIndicators(30, 100))
	a.Candles["5m"] = channelCandles(100, 95, 99, 400)

	d, err := b.Evaluate(context.Background(), a)
	mustPass(t, d, err)
}
