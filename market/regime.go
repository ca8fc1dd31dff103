package market

import (
	"github.com/evdnx/goqe/types"
)

// Regime thresholds. Evaluated in a fixed order: trending wins over
// volatile, and anything undecidable is ranging.
const (
	trendingADX        = 25.0
	trendingBandWidth  = 3.0 // % of price
	volatileBandWidth  = 8.0
	volatileATRPctOfPx = 3.0
)

// ClassifyRegime labels the pair's current state from the execution-
// timeframe indicators. Missing ADX or band-width data yields ranging as
// the conservative default.
func ClassifyRegime(ind *types.TechnicalIndicators, price float64) types.Regime {
	if ind == nil || ind.ADX == nil || ind.BBWidthPct == nil {
		return types.RegimeRanging
	}
	if *ind.ADX > trendingADX && *ind.BBWidthPct > trendingBandWidth {
		return types.RegimeTrending
	}
	if ind.ATR != nil && price > 0 {
		atrPct := *ind.ATR / price * 100
		if *ind.BBWidthPct > volatileBandWidth && atrPct > volatileATRPctOfPx {
			return types.RegimeVolatile
		}
	}
	return types.RegimeRanging
}
