package types

import (
	"fmt"
	"math"
	"time"
)

// Side is the direction of a decision or position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Regime classifies the current market behaviour of a pair.
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
	RegimeVolatile Regime = "volatile"
)

// TradeType distinguishes directional positions from funding-carry ones.
type TradeType string

const (
	TradeDirectional TradeType = "directional"
	TradeFunding     TradeType = "funding"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// ExitReason is the human-readable reason persisted with every close.
type ExitReason string

const (
	ExitLiquidation  ExitReason = "liquidation"
	ExitTrailingStop ExitReason = "trailing-stop"
	ExitStagnation   ExitReason = "stagnation"
	ExitStopLoss     ExitReason = "stop-loss"
	ExitTakeProfit   ExitReason = "take-profit"
	ExitManual       ExitReason = "manual"

	// Funding carry exits, driven by the rate rather than price.
	ExitFundingNormalized ExitReason = "funding-rate-normalized"
	ExitFundingFlip       ExitReason = "funding-rate-flipped"
)

// Trend labels the recent direction of a sampled series (long/short ratio,
// open interest).
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// Candle is a single OHLCV bar. Series are ordered ascending by Timestamp
// with no duplicate timestamps within one interval.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// TechnicalIndicators holds the computed indicator values for one pair and
// interval. A nil field means the value is unavailable (insufficient
// history); consumers must branch on presence, never on magnitude.
type TechnicalIndicators struct {
	RSI        *float64
	MACD       *float64
	MACDSignal *float64
	MACDHist   *float64

	BBUpper    *float64
	BBMiddle   *float64
	BBLower    *float64
	BBWidthPct *float64 // (upper-lower)/middle * 100

	ATR  *float64
	ADX  *float64
	VWAP *float64

	PSAR     *float64
	PrevPSAR *float64

	CCI     *float64
	PrevCCI *float64

	VolumeAvg20 *float64
}

// Microstructure is the derived order-book / open-interest snapshot.
type Microstructure struct {
	// ImbalanceRatio is bid depth / (bid depth + ask depth), in (0, 1).
	ImbalanceRatio float64
	// SpreadPct is (ask-bid)/mid * 100.
	SpreadPct float64

	// LongShortRatio is the venue's long/short account ratio (longs over
	// shorts). LongShortTrend labels its recent direction: rising means
	// longs crowding in or shorts closing out, falling the reverse.
	LongShortRatio float64
	LongShortTrend Trend

	// OIDeltaPct is the open-interest change over the sampling window as a
	// percentage; nil when fewer than two samples exist.
	OIDeltaPct *float64
}

// PairAnalysis aggregates everything a strategy is allowed to look at for
// one pair. It is the sole input to every strategy engine.
type PairAnalysis struct {
	Pair      string
	Timestamp time.Time
	MarkPrice float64

	// Indicators and Candles are keyed by interval ("5m", "1h", ...).
	Indicators map[string]*TechnicalIndicators
	Candles    map[string][]Candle

	Regime Regime
	Micro  *Microstructure

	// FundingRate is the current per-period funding rate (nil if the fetch
	// failed this cycle). OpenInterest is the latest OI in contracts.
	FundingRate  *float64
	OpenInterest *float64
}

// IndicatorsFor returns the indicator set for an interval, or nil.
func (a *PairAnalysis) IndicatorsFor(interval string) *TechnicalIndicators {
	if a.Indicators == nil {
		return nil
	}
	return a.Indicators[interval]
}

// CandlesFor returns the candle series for an interval, or nil.
func (a *PairAnalysis) CandlesFor(interval string) []Candle {
	if a.Candles == nil {
		return nil
	}
	return a.Candles[interval]
}

// MaxConfidence caps every decision's confidence: the engines never claim
// certainty.
const MaxConfidence = 90.0

// Decision is a directional trade proposal emitted by a strategy engine.
type Decision struct {
	Pair       string
	Strategy   string
	Direction  Side
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Confidence float64 // 0..90
	Reasoning  string
	Regime     Regime
	SizeUSD    float64 // margin to commit, from the sizer
}

// Validate enforces the stop/take-profit side invariant and rejects
// non-finite or non-positive levels. Every engine must pass its decision
// through this before returning it.
func (d *Decision) Validate() error {
	for name, v := range map[string]float64{
		"entry":      d.EntryPrice,
		"stopLoss":   d.StopLoss,
		"takeProfit": d.TakeProfit,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("decision %s/%s: %s is not a positive finite price: %f", d.Pair, d.Strategy, name, v)
		}
	}
	if d.Confidence < 0 || d.Confidence > MaxConfidence {
		return fmt.Errorf("decision %s/%s: confidence %f outside [0,%v]", d.Pair, d.Strategy, d.Confidence, MaxConfidence)
	}
	switch d.Direction {
	case Long:
		if !(d.StopLoss < d.EntryPrice && d.EntryPrice < d.TakeProfit) {
			return fmt.Errorf("decision %s/%s: long levels out of order (sl=%f entry=%f tp=%f)",
				d.Pair, d.Strategy, d.StopLoss, d.EntryPrice, d.TakeProfit)
		}
	case Short:
		if !(d.TakeProfit < d.EntryPrice && d.EntryPrice < d.StopLoss) {
			return fmt.Errorf("decision %s/%s: short levels out of order (tp=%f entry=%f sl=%f)",
				d.Pair, d.Strategy, d.TakeProfit, d.EntryPrice, d.StopLoss)
		}
	default:
		return fmt.Errorf("decision %s/%s: unknown direction %q", d.Pair, d.Strategy, d.Direction)
	}
	return nil
}

// Position is a live or historical position record. Size is margin (capital
// at risk); Size*Leverage is notional exposure.
type Position struct {
	ID        string
	Pair      string
	Strategy  string
	TradeType TradeType
	Direction Side

	EntryPrice float64
	Size       float64
	Leverage   float64

	StopLoss   *float64
	TakeProfit *float64

	// PeakPnlPct tracks the highest unrealized PnL percentage seen so far,
	// maintained by the position monitor for the trailing stop.
	PeakPnlPct float64

	// HedgePrice is the virtual spot hedge entry recorded for delta-neutral
	// funding positions. Accounting only, no spot order is placed.
	HedgePrice *float64

	Status   PositionStatus
	OpenedAt time.Time

	ClosedAt    *time.Time
	ExitPrice   *float64
	RealizedPnl *float64
	ExitReason  ExitReason
}

// Notional is the leveraged exposure in USD.
func (p *Position) Notional() float64 { return p.Size * p.Leverage }

// UnrealizedPnl is the signed PnL in USD at the given mark price.
func (p *Position) UnrealizedPnl(mark float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	move := (mark - p.EntryPrice) / p.EntryPrice
	if p.Direction == Short {
		move = -move
	}
	return move * p.Notional()
}

// UnrealizedPnlPct is the unrealized PnL as a percentage of margin.
func (p *Position) UnrealizedPnlPct(mark float64) float64 {
	if p.Size <= 0 {
		return 0
	}
	return p.UnrealizedPnl(mark) / p.Size * 100
}

// TradeRecord is the immutable record kept for every closed position.
type TradeRecord struct {
	PositionID string
	Pair       string
	Strategy   string
	TradeType  TradeType
	Direction  Side
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Leverage   float64
	Pnl        float64
	ExitReason ExitReason
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Float64 returns a pointer to v. Convenience for optional fields.
func Float64(v float64) *float64 { return &v }
