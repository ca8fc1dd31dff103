package market

import (
	"testing"

	"github.com/evdnx/goqe/types"
)

func ind(adx, bbWidth, atr float64) *types.TechnicalIndicators {
	return &types.TechnicalIndicators{
		ADX:        types.Float64(adx),
		BBWidthPct: types.Float64(bbWidth),
		ATR:        types.Float64(atr),
	}
}

// The classification order is fixed: trending is checked before volatile,
// and anything unclassified is ranging.
func TestClassifyRegime(t *testing.T) {
	cases := []struct {
		name string
		ind  *types.TechnicalIndicators
		want types.Regime
	}{
		{"strong trend", ind(30, 5, 1), types.RegimeTrending},
		{"trend check wins over volatile", ind(30, 10, 5), types.RegimeTrending},
		{"wide bands and high atr", ind(20, 10, 5), types.RegimeVolatile},
		{"wide bands but calm atr", ind(20, 10, 1), types.RegimeRanging},
		{"quiet market", ind(15, 2, 0.5), types.RegimeRanging},
		{"adx floor not met", ind(25, 5, 1), types.RegimeRanging},
	}
	for _, c := range cases {
		if got := ClassifyRegime(c.ind, 100); got != c.want {
			t.Fatalf("%s: want %s, got %s", c.name, c.want, got)
		}
	}
}

// Missing inputs classify as ranging, the conservative default.
func TestClassifyRegimeMissingData(t *testing.T) {
	if got := ClassifyRegime(&types.TechnicalIndicators{}, 100); got != types.RegimeRanging {
		t.Fatalf("empty indicators: want ranging, got %s", got)
	}
	noADX := &types.TechnicalIndicators{BBWidthPct: types.Float64(10), ATR: types.Float64(5)}
	if got := ClassifyRegime(noADX, 100); got != types.RegimeRanging {
		t.Fatalf("missing adx: want ranging, got %s", got)
	}
	if got := ClassifyRegime(nil, 100); got != types.RegimeRanging {
		t.Fatalf("nil indicators: want ranging, got %s", got)
	}
}
