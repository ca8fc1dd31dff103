// Package testutils holds the shared test doubles: a recording logger, a
// scripted venue client and candle series builders.
package testutils

import (
	"time"

	"github.com/evdnx/goqe/types"
)

// T0 is the fixed series start used by the builders so tests stay
// deterministic.
var T0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// CandleSeries builds n bars spaced by step, with close and volume supplied
// per index. High/low wrap the open/close with a small wick.
func CandleSeries(n int, step time.Duration, closeAt, volumeAt func(i int) float64) []types.Candle {
	out := make([]types.Candle, n)
	prev := closeAt(0)
	for i := 0; i < n; i++ {
		c := closeAt(i)
		hi, lo := c, prev
		if prev > c {
			hi, lo = prev, c
		}
		out[i] = types.Candle{
			Timestamp: T0.Add(time.Duration(i) * step),
			Open:      prev,
			High:      hi * 1.001,
			Low:       lo * 0.999,
			Close:     c,
			Volume:    volumeAt(i),
		}
		prev = c
	}
	return out
}

// RampCandles is a linear price walk at 5m spacing with unit volume:
// close(i) = base + slope*i. Negative slope ramps down.
func RampCandles(n int, base, slope float64) []types.Candle {
	return CandleSeries(n, 5*time.Minute,
		func(i int) float64 { return base + slope*float64(i) },
		func(int) float64 { return 100 },
	)
}

// FlatCandles is a constant-price series at 5m spacing with unit volume.
func FlatCandles(n int, price float64) []types.Candle {
	return RampCandles(n, price, 0)
}
