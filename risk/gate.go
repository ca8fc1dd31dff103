package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/logger"
)

var (
	// ErrHalted means the kill switch or the daily-loss pause is active.
	ErrHalted = errors.New("risk: trading halted")
	// ErrMaxPositions means the concurrent position cap is reached.
	ErrMaxPositions = errors.New("risk: max concurrent positions reached")
	// ErrExposure means the requested notional exceeds remaining headroom.
	ErrExposure = errors.New("risk: exposure cap exceeded")
)

// Gate tracks the kill switch and the daily-loss pause. It is consulted on
// every open path and never on closes: open risk stays reducible while
// halted.
type Gate struct {
	cfg        config.RiskConfig
	refBalance float64
	log        logger.Logger
	now        func() time.Time

	mu         sync.Mutex
	killSwitch bool
	paused     bool
	day        time.Time
	dailyLoss  float64 // realized loss today, positive number
}

// NewGate builds a gate. refBalance anchors the percentage loss limit.
func NewGate(cfg config.RiskConfig, refBalance float64, log logger.Logger) *Gate {
	g := &Gate{cfg: cfg, refBalance: refBalance, log: log, now: time.Now}
	g.day = g.today()
	return g
}

func (g *Gate) today() time.Time {
	return g.now().UTC().Truncate(24 * time.Hour)
}

// rollover resets the daily tally when the UTC day changes. The manual kill
// switch survives; the automatic loss pause does not, being a per-day
// limit. Callers hold g.mu.
func (g *Gate) rollover() {
	if d := g.today(); !d.Equal(g.day) {
		g.day = d
		g.dailyLoss = 0
		if g.paused {
			g.paused = false
			g.log.Info("risk_pause_cleared", logger.String("cause", "day rollover"))
		}
	}
}

// CanTrade reports whether new positions may be opened.
func (g *Gate) CanTrade() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	return !g.killSwitch && !g.paused
}

// SetKillSwitch flips the manual halt. Never cleared automatically.
func (g *Gate) SetKillSwitch(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.killSwitch = on
	g.log.Warn("risk_kill_switch", logger.Bool("on", on))
}

// KillSwitch reports the manual halt state.
func (g *Gate) KillSwitch() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.killSwitch
}

// Paused reports the automatic daily-loss pause state.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	return g.paused
}

// RecordRealizedPnl feeds a close's realized PnL into the daily tally and
// arms the pause when the configured dollar or percentage limit is
// breached.
func (g *Gate) RecordRealizedPnl(pnl float64) {
	if pnl >= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	g.dailyLoss += -pnl

	limit := g.cfg.DailyLossLimitUSD
	if g.cfg.DailyLossLimitPct > 0 {
		pctLimit := g.refBalance * g.cfg.DailyLossLimitPct / 100
		if limit <= 0 || pctLimit < limit {
			limit = pctLimit
		}
	}
	if limit > 0 && g.dailyLoss >= limit && !g.paused {
		g.paused = true
		g.log.Warn("risk_daily_loss_pause",
			logger.Float64("daily_loss", g.dailyLoss),
			logger.Float64("limit", limit),
		)
	}
}

// CheckOpen validates a prospective open against the halt state, the
// position-count cap and the exposure cap.
func (g *Gate) CheckOpen(openPositions int, currentExposure, addNotional float64) error {
	if !g.CanTrade() {
		return ErrHalted
	}
	if openPositions >= g.cfg.MaxPositions {
		return ErrMaxPositions
	}
	if g.cfg.MaxExposureUSD > 0 && currentExposure+addNotional > g.cfg.MaxExposureUSD {
		return ErrExposure
	}
	return nil
}

// ExposureHeadroom is the notional still available under the exposure cap.
// Unlimited when no cap is configured.
func (g *Gate) ExposureHeadroom(currentExposure float64) float64 {
	if g.cfg.MaxExposureUSD <= 0 {
		return 1e18
	}
	h := g.cfg.MaxExposureUSD - currentExposure
	if h < 0 {
		return 0
	}
	return h
}
