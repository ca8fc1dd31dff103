// Package market builds the per-pair analysis snapshot the strategy
// engines consume: candles, indicators, regime, microstructure, funding
// and open interest.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/indicator"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

// Enough bars for the slowest indicator (MACD 26+9) with headroom.
const analysisBars = 120

// Pipeline assembles PairAnalysis snapshots. Strategies never fetch data
// themselves; everything they may look at flows through here (the daily
// trend filter's cache being the one sanctioned side door).
type Pipeline struct {
	client      exchange.Client
	micro       *MicroSampler
	log         logger.Logger
	interval    string
	htfInterval string
}

// NewPipeline wires a pipeline for the configured execution and higher
// timeframes.
func NewPipeline(client exchange.Client, log logger.Logger, interval, htfInterval string) *Pipeline {
	return &Pipeline{
		client:      client,
		micro:       NewMicroSampler(client, log),
		log:         log,
		interval:    interval,
		htfInterval: htfInterval,
	}
}

// Analyze builds the snapshot for one pair at the given premium (mark price
// + funding rate, already fetched in the cycle's batched call). The
// microstructure part is best-effort: its absence disables only the
// microstructure engine, not the cycle.
func (p *Pipeline) Analyze(ctx context.Context, pair string, prem exchange.Premium) (*types.PairAnalysis, error) {
	execCandles, err := p.client.Klines(ctx, pair, p.interval, analysisBars)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", pair, err)
	}
	if len(execCandles) == 0 {
		return nil, fmt.Errorf("pipeline %s: no %s candles", pair, p.interval)
	}
	htfCandles, err := p.client.Klines(ctx, pair, p.htfInterval, analysisBars)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", pair, err)
	}

	execInd := indicator.Compute(execCandles)
	htfInd := indicator.Compute(htfCandles)

	analysis := &types.PairAnalysis{
		Pair:      pair,
		Timestamp: time.Now(),
		MarkPrice: prem.MarkPrice,
		Indicators: map[string]*types.TechnicalIndicators{
			p.interval:    execInd,
			p.htfInterval: htfInd,
		},
		Candles: map[string][]types.Candle{
			p.interval:    execCandles,
			p.htfInterval: htfCandles,
		},
		Regime:      ClassifyRegime(execInd, prem.MarkPrice),
		FundingRate: types.Float64(prem.FundingRate),
	}

	micro, oi, err := p.micro.Snapshot(ctx, pair)
	if err != nil {
		p.log.Warn("micro_snapshot_unavailable",
			logger.String("pair", pair),
			logger.Err(err),
		)
	} else {
		analysis.Micro = micro
		analysis.OpenInterest = types.Float64(oi)
	}

	return analysis, nil
}

// Interval returns the execution timeframe the pipeline was built with.
func (p *Pipeline) Interval() string { return p.interval }

// HTFInterval returns the higher timeframe the pipeline was built with.
func (p *Pipeline) HTFInterval() string { return p.htfInterval }
