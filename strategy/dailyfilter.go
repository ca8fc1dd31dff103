package strategy

import (
	"context"

	"github.com/evdnx/goqe/indicator"
	"github.com/evdnx/goqe/market"
	"github.com/evdnx/goqe/types"
)

const dailyADXPeriod = 14

// dailyTrend is the higher-timeframe gate shared by the PSAR and CCI-Trend
// engines: daily close above its SMA allows longs, below allows shorts, and
// a daily ADX under the floor allows nothing. Returns ok=false when the
// filter forbids trading or the daily series is unavailable.
func dailyTrend(ctx context.Context, cache *market.DailyCache, pair string, smaPeriod int, adxFloor float64) (types.Side, bool) {
	daily := cache.Get(ctx, pair)
	if len(daily) == 0 {
		return "", false
	}
	sma := indicator.SMA(daily, smaPeriod)
	adx := indicator.ADX(daily, dailyADXPeriod)
	if sma == nil || adx == nil || *adx < adxFloor {
		return "", false
	}
	close := daily[len(daily)-1].Close
	switch {
	case close > *sma:
		return types.Long, true
	case close < *sma:
		return types.Short, true
	default:
		return "", false
	}
}
