package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

func TestIntervalDuration(t *testing.T) {
	d, err := IntervalDuration("5m")
	if err != nil || d != 5*time.Minute {
		t.Fatalf("5m: want 5 minutes, got %v err %v", d, err)
	}
	if _, err := IntervalDuration("7m"); err == nil {
		t.Fatalf("unknown interval must error")
	}
}

// Chunked range fetches can overlap at the boundaries; dedupe must keep the
// later fetch for a repeated timestamp and restore ascending order.
func TestSortDedupe(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bar := func(offset time.Duration, close float64) types.Candle {
		return types.Candle{Timestamp: t0.Add(offset), Close: close}
	}

	got := sortDedupe([]types.Candle{
		bar(10*time.Minute, 3),
		bar(0, 1),
		bar(5*time.Minute, 2),
		bar(5*time.Minute, 99), // later fetch of the same bar
	})

	if len(got) != 3 {
		t.Fatalf("want 3 candles after dedupe, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Timestamp.Before(got[i].Timestamp) {
			t.Fatalf("candles out of order at %d", i)
		}
	}
	if got[1].Close != 99 {
		t.Fatalf("dedupe must keep the later fetch, got close %f", got[1].Close)
	}
}

// The venue wraps its 5xx responses in coded API errors; those retry like
// transport failures while request rejections abort on the first attempt.
func TestWithRetryAPIErrorHandling(t *testing.T) {
	b := &Binance{log: logger.NewNop()}

	calls := 0
	err := b.withRetry(context.Background(), "klines", func() error {
		calls++
		if calls < 3 {
			return &common.APIError{Code: -1001, Message: "internal error; unable to process your request"}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("server-side codes must retry to success: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = b.withRetry(context.Background(), "klines", func() error {
		calls++
		return &common.APIError{Code: -1121, Message: "invalid symbol"}
	})
	if err == nil || calls != 1 {
		t.Fatalf("request rejections must not retry: err=%v calls=%d", err, calls)
	}
}
