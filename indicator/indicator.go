// Package indicator computes the technical indicator set consumed by the
// strategy engines. Every value is optional: a nil field means the candle
// history was too short, never a sentinel numeric.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/evdnx/goqe/types"
)

const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	bbPeriod   = 20
	atrPeriod  = 14
	adxPeriod  = 14
	cciPeriod  = 20
	volPeriod  = 20

	sarAcceleration = 0.02
	sarMaximum      = 0.2
)

// Compute derives the full indicator set from one interval's candle series.
// The series must be ordered ascending by timestamp.
func Compute(candles []types.Candle) *types.TechnicalIndicators {
	ind := &types.TechnicalIndicators{}
	n := len(candles)
	if n == 0 {
		return ind
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	if n > rsiPeriod {
		rsi := talib.Rsi(closes, rsiPeriod)
		ind.RSI = last(rsi)
	}

	if n > macdSlow+macdSignal {
		macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		ind.MACD = last(macd)
		ind.MACDSignal = last(signal)
		ind.MACDHist = last(hist)
	}

	if n >= bbPeriod {
		upper, middle, lower := talib.BBands(closes, bbPeriod, 2.0, 2.0, 0)
		ind.BBUpper = last(upper)
		ind.BBMiddle = last(middle)
		ind.BBLower = last(lower)
		if ind.BBUpper != nil && ind.BBMiddle != nil && ind.BBLower != nil && *ind.BBMiddle != 0 {
			ind.BBWidthPct = types.Float64((*ind.BBUpper - *ind.BBLower) / *ind.BBMiddle * 100)
		}
	}

	if n > atrPeriod {
		atr := talib.Atr(highs, lows, closes, atrPeriod)
		ind.ATR = last(atr)
	}

	if n > 2*adxPeriod {
		adx := talib.Adx(highs, lows, closes, adxPeriod)
		ind.ADX = last(adx)
	}

	if n >= 3 {
		sar := talib.Sar(highs, lows, sarAcceleration, sarMaximum)
		ind.PSAR = last(sar)
		ind.PrevPSAR = at(sar, len(sar)-2)
	}

	if n > cciPeriod {
		cci := talib.Cci(highs, lows, closes, cciPeriod)
		ind.CCI = last(cci)
		ind.PrevCCI = at(cci, len(cci)-2)
	}

	ind.VWAP = VWAP(candles)

	if n > volPeriod {
		// Average of the volPeriod bars preceding the current one.
		sum := 0.0
		for i := n - 1 - volPeriod; i < n-1; i++ {
			sum += volumes[i]
		}
		ind.VolumeAvg20 = types.Float64(sum / volPeriod)
	}

	return ind
}

// VWAP is the volume-weighted average of the typical price over the whole
// series (the session the caller chose to pass in). Nil when no volume
// traded.
func VWAP(candles []types.Candle) *float64 {
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol <= 0 {
		return nil
	}
	return types.Float64(pv / vol)
}

// SMA is the simple moving average of the closes over period. Nil when the
// series is shorter than the period.
func SMA(candles []types.Candle, period int) *float64 {
	if period <= 0 || len(candles) < period {
		return nil
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return types.Float64(sum / float64(period))
}

// ADX computes the trend-strength index over the series. Nil when the
// series is too short.
func ADX(candles []types.Candle, period int) *float64 {
	if period <= 0 || len(candles) <= 2*period {
		return nil
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return last(talib.Adx(highs, lows, closes, period))
}

// Channel returns the highest high and lowest low over the lookback window
// that ends one bar before the current one. The current bar is excluded so
// a breakout compares against a channel it did not itself shape. Nil when
// there is not enough history.
func Channel(candles []types.Candle, lookback int) (high, low *float64) {
	n := len(candles)
	if lookback < 1 || n < lookback+1 {
		return nil, nil
	}
	window := candles[n-1-lookback : n-1]
	hi, lo := window[0].High, window[0].Low
	for _, c := range window[1:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	return types.Float64(hi), types.Float64(lo)
}

func last(vals []float64) *float64 {
	return at(vals, len(vals)-1)
}

func at(vals []float64, i int) *float64 {
	if i < 0 || i >= len(vals) {
		return nil
	}
	v := vals[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return types.Float64(v)
}
