// Package recorder persists closed trades and equity samples to InfluxDB.
// Recording is an observability concern: a write failure is logged, never
// surfaced to the trading path.
package recorder

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

// Recorder receives trade and equity data points.
type Recorder interface {
	RecordTrade(rec types.TradeRecord)
	RecordEquity(balance float64, at time.Time)
	Close()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(types.TradeRecord)   {}
func (Nop) RecordEquity(float64, time.Time) {}
func (Nop) Close()                          {}

// Influx writes through the client's async write API; errors come back on
// its error channel and are logged there.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      logger.Logger
}

// NewInflux connects the client and starts draining the write error channel.
func NewInflux(cfg config.StorageConfig, log logger.Logger) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := &Influx{client: client, writeAPI: writeAPI, log: log}
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn("influx_write_failed", logger.Err(err))
		}
	}()
	return r
}

// RecordTrade writes one closed-trade point keyed by position id.
func (r *Influx) RecordTrade(rec types.TradeRecord) {
	point := influxdb2.NewPoint(
		"trades",
		map[string]string{
			"pair":       rec.Pair,
			"strategy":   rec.Strategy,
			"trade_type": string(rec.TradeType),
			"direction":  string(rec.Direction),
			"reason":     string(rec.ExitReason),
		},
		map[string]interface{}{
			"position_id": rec.PositionID,
			"entry":       rec.EntryPrice,
			"exit":        rec.ExitPrice,
			"size":        rec.Size,
			"leverage":    rec.Leverage,
			"pnl":         rec.Pnl,
			"held_sec":    rec.ClosedAt.Sub(rec.OpenedAt).Seconds(),
		},
		rec.ClosedAt,
	)
	r.writeAPI.WritePoint(point)
}

// RecordEquity writes one balance sample.
func (r *Influx) RecordEquity(balance float64, at time.Time) {
	point := influxdb2.NewPoint(
		"equity",
		nil,
		map[string]interface{}{"balance": balance},
		at,
	)
	r.writeAPI.WritePoint(point)
}

// Close flushes pending writes and shuts the client down.
func (r *Influx) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}
