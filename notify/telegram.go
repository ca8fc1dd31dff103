package notify

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

// Halter is the slice of the risk gate the bot commands need.
type Halter interface {
	SetKillSwitch(on bool)
	KillSwitch() bool
	Paused() bool
}

// Telegram pushes trade events to a chat and accepts /pause, /resume and
// /status commands that drive the manual kill switch.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
	log    logger.Logger
}

// NewTelegram connects the bot and registers the operator commands.
func NewTelegram(cfg config.TelegramConfig, gate Halter, log logger.Logger) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("notify: telegram connect: %w", err)
	}
	t := &Telegram{bot: bot, chatID: cfg.ChatID, log: log}

	bot.Handle("/pause", func(c tele.Context) error {
		gate.SetKillSwitch(true)
		return c.Send("Trading halted. Open positions stay monitored.")
	})
	bot.Handle("/resume", func(c tele.Context) error {
		gate.SetKillSwitch(false)
		return c.Send("Kill switch cleared.")
	})
	bot.Handle("/status", func(c tele.Context) error {
		msg := "Trading active."
		switch {
		case gate.KillSwitch():
			msg = "Halted by kill switch."
		case gate.Paused():
			msg = "Paused by daily loss limit."
		}
		return c.Send(msg)
	})
	return t, nil
}

// Start runs the command poller until Stop is called.
func (t *Telegram) Start() { go t.bot.Start() }

// Stop shuts the poller down.
func (t *Telegram) Stop() { t.bot.Stop() }

func (t *Telegram) send(msg string) {
	go func() {
		if _, err := t.bot.Send(&tele.Chat{ID: t.chatID}, msg, tele.ModeMarkdown); err != nil {
			t.log.Warn("telegram_send_failed", logger.Err(err))
		}
	}()
}

// PositionOpened announces a new position.
func (t *Telegram) PositionOpened(pos *types.Position) {
	t.send(fmt.Sprintf("📈 *%s* %s %s\nentry %.4f, margin $%.2f at %gx\nstrategy: %s",
		pos.Pair, pos.Direction, pos.TradeType, pos.EntryPrice, pos.Size, pos.Leverage, pos.Strategy))
}

// TradeClosed announces a close with its realized PnL.
func (t *Telegram) TradeClosed(rec types.TradeRecord) {
	icon := "✅"
	if rec.Pnl < 0 {
		icon = "🔻"
	}
	t.send(fmt.Sprintf("%s *%s* %s closed: %s\nentry %.4f → exit %.4f, pnl $%.2f",
		icon, rec.Pair, rec.Direction, rec.ExitReason, rec.EntryPrice, rec.ExitPrice, rec.Pnl))
}
