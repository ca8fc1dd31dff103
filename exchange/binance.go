package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

// Venue caps the number of candles returned per klines call.
const maxKlinesPerCall = 1000

const maxFetchAttempts = 3

// Binance is the USD-M futures implementation of Client.
type Binance struct {
	futures *futures.Client
	log     logger.Logger
}

// NewBinance builds a futures client from config.
func NewBinance(cfg config.BinanceConfig, log logger.Logger) *Binance {
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	return &Binance{futures: client, log: log}
}

// Futures exposes the raw client for the live executor's order endpoints.
func (b *Binance) Futures() *futures.Client { return b.futures }

func (b *Binance) Klines(ctx context.Context, pair, interval string, limit int) ([]types.Candle, error) {
	if limit > maxKlinesPerCall {
		limit = maxKlinesPerCall
	}
	var out []types.Candle
	err := b.withRetry(ctx, "klines", func() error {
		klines, err := b.futures.NewKlinesService().
			Symbol(pair).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return err
		}
		out, err = convertKlines(klines)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: klines %s %s: %w", pair, interval, err)
	}
	return out, nil
}

func (b *Binance) KlinesRange(ctx context.Context, pair, interval string, start, end time.Time) ([]types.Candle, error) {
	step, err := IntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	var all []types.Candle
	cursor := start
	for cursor.Before(end) {
		var chunk []types.Candle
		err := b.withRetry(ctx, "klines_range", func() error {
			klines, err := b.futures.NewKlinesService().
				Symbol(pair).
				Interval(interval).
				StartTime(cursor.UnixMilli()).
				EndTime(end.UnixMilli()).
				Limit(maxKlinesPerCall).
				Do(ctx)
			if err != nil {
				return err
			}
			chunk, err = convertKlines(klines)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("exchange: klines range %s %s: %w", pair, interval, err)
		}
		if len(chunk) == 0 {
			break
		}
		all = append(all, chunk...)
		next := chunk[len(chunk)-1].Timestamp.Add(step)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}
	return sortDedupe(all), nil
}

func (b *Binance) Premiums(ctx context.Context, pairs []string) (map[string]Premium, error) {
	wanted := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		wanted[p] = true
	}
	var out map[string]Premium
	err := b.withRetry(ctx, "premium_index", func() error {
		idx, err := b.futures.NewPremiumIndexService().Do(ctx)
		if err != nil {
			return err
		}
		out = make(map[string]Premium, len(pairs))
		for _, p := range idx {
			if !wanted[p.Symbol] {
				continue
			}
			mark, err := parseDecimal(p.MarkPrice)
			if err != nil {
				continue
			}
			rate, err := parseDecimal(p.LastFundingRate)
			if err != nil {
				continue
			}
			out[p.Symbol] = Premium{MarkPrice: mark, FundingRate: rate}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: premium index: %w", err)
	}
	return out, nil
}

func (b *Binance) Depth(ctx context.Context, pair string, levels int) (*Depth, error) {
	var out *Depth
	err := b.withRetry(ctx, "depth", func() error {
		ob, err := b.futures.NewDepthService().Symbol(pair).Limit(levels).Do(ctx)
		if err != nil {
			return err
		}
		if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
			return errors.New("empty order book")
		}
		d := &Depth{}
		if d.BestBid, err = parseDecimal(ob.Bids[0].Price); err != nil {
			return err
		}
		if d.BestAsk, err = parseDecimal(ob.Asks[0].Price); err != nil {
			return err
		}
		for _, lvl := range ob.Bids {
			qty, err := parseDecimal(lvl.Quantity)
			if err != nil {
				continue
			}
			d.BidDepth += qty
		}
		for _, lvl := range ob.Asks {
			qty, err := parseDecimal(lvl.Quantity)
			if err != nil {
				continue
			}
			d.AskDepth += qty
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: depth %s: %w", pair, err)
	}
	return out, nil
}

func (b *Binance) OpenInterest(ctx context.Context, pair string) (float64, error) {
	var out float64
	err := b.withRetry(ctx, "open_interest", func() error {
		oi, err := b.futures.NewOpenInterestService().Symbol(pair).Do(ctx)
		if err != nil {
			return err
		}
		out, err = parseDecimal(oi.OpenInterest)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: open interest %s: %w", pair, err)
	}
	return out, nil
}

func (b *Binance) LongShortRatio(ctx context.Context, pair string, samples int) ([]float64, error) {
	var out []float64
	err := b.withRetry(ctx, "long_short_ratio", func() error {
		rows, err := b.futures.NewLongShortRatioService().
			Symbol(pair).
			Period("5m").
			Limit(samples).
			Do(ctx)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, r := range rows {
			v, err := parseDecimal(r.LongShortRatio)
			if err != nil {
				continue
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: long/short ratio %s: %w", pair, err)
	}
	return out, nil
}

// transientAPICode reports venue error codes that describe server-side
// trouble rather than a bad request: UNKNOWN, DISCONNECTED, TIMEOUT and
// SERVICE_SHUTTING_DOWN. The venue returns its 5xx responses as coded API
// errors, so these retry like transport failures.
func transientAPICode(code int64) bool {
	switch code {
	case -1000, -1001, -1007, -1016:
		return true
	}
	return false
}

// withRetry runs fn with bounded exponential backoff. Venue rejections
// (API errors where the request itself was bad) are not retried; transport
// failures, timeouts and server-side venue errors are, up to
// maxFetchAttempts.
func (b *Binance) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    3 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	var err error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && !transientAPICode(apiErr.Code) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == maxFetchAttempts {
			break
		}
		d := bo.Duration()
		b.log.Warn("venue_fetch_retry",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", d),
			logger.Err(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return err
}

func convertKlines(klines []*futures.Kline) ([]types.Candle, error) {
	out := make([]types.Candle, 0, len(klines))
	for _, k := range klines {
		c := types.Candle{Timestamp: time.UnixMilli(k.OpenTime)}
		var err error
		if c.Open, err = parseDecimal(k.Open); err != nil {
			return nil, err
		}
		if c.High, err = parseDecimal(k.High); err != nil {
			return nil, err
		}
		if c.Low, err = parseDecimal(k.Low); err != nil {
			return nil, err
		}
		if c.Close, err = parseDecimal(k.Close); err != nil {
			return nil, err
		}
		if c.Volume, err = parseDecimal(k.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// parseDecimal converts the venue's string decimals without the float
// round-trip surprises of Sscanf.
func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
