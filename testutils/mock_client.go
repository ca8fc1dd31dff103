package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/types"
)

// MockClient implements exchange.Client from canned data. Every field is
// optional; an unset lookup returns a "no data" error so tests fail loudly
// on paths they did not script.
type MockClient struct {
	mu sync.Mutex

	// Candles keyed by "pair/interval".
	Candles map[string][]types.Candle
	// Prems keyed by pair.
	Prems map[string]exchange.Premium
	// Books keyed by pair.
	Books map[string]exchange.Depth
	// OI keyed by pair; Ratios keyed by pair.
	OI     map[string]float64
	Ratios map[string][]float64

	// PremiumErr forces Premiums to fail, for fetch-failure paths.
	PremiumErr error

	klinesCalls int
}

// NewMockClient returns an empty scripted client.
func NewMockClient() *MockClient {
	return &MockClient{
		Candles: make(map[string][]types.Candle),
		Prems:   make(map[string]exchange.Premium),
		Books:   make(map[string]exchange.Depth),
		OI:      make(map[string]float64),
		Ratios:  make(map[string][]float64),
	}
}

// SetCandles scripts the series for one pair and interval.
func (m *MockClient) SetCandles(pair, interval string, candles []types.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Candles[pair+"/"+interval] = candles
}

// KlinesCalls reports how many candle fetches were made.
func (m *MockClient) KlinesCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.klinesCalls
}

func (m *MockClient) Klines(_ context.Context, pair, interval string, limit int) ([]types.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.klinesCalls++
	candles, ok := m.Candles[pair+"/"+interval]
	if !ok {
		return nil, fmt.Errorf("mock: no candles scripted for %s/%s", pair, interval)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (m *MockClient) KlinesRange(ctx context.Context, pair, interval string, _, _ time.Time) ([]types.Candle, error) {
	return m.Klines(ctx, pair, interval, 0)
}

func (m *MockClient) Premiums(_ context.Context, pairs []string) (map[string]exchange.Premium, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PremiumErr != nil {
		return nil, m.PremiumErr
	}
	out := make(map[string]exchange.Premium)
	for _, p := range pairs {
		if prem, ok := m.Prems[p]; ok {
			out[p] = prem
		}
	}
	return out, nil
}

func (m *MockClient) Depth(_ context.Context, pair string, _ int) (*exchange.Depth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Books[pair]
	if !ok {
		return nil, fmt.Errorf("mock: no book scripted for %s", pair)
	}
	return &d, nil
}

func (m *MockClient) OpenInterest(_ context.Context, pair string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oi, ok := m.OI[pair]
	if !ok {
		return 0, fmt.Errorf("mock: no open interest scripted for %s", pair)
	}
	return oi, nil
}

func (m *MockClient) LongShortRatio(_ context.Context, pair string, _ int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Ratios[pair]
	if !ok {
		return nil, fmt.Errorf("mock: no long/short ratios scripted for %s", pair)
	}
	return r, nil
}
