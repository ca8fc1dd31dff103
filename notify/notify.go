// Package notify delivers trade events to the operator. Delivery is
// fire-and-forget: a failed or slow notification never blocks or rolls back
// the trade that produced it.
package notify

import "github.com/evdnx/goqe/types"

// Notifier receives position lifecycle events.
type Notifier interface {
	PositionOpened(pos *types.Position)
	TradeClosed(rec types.TradeRecord)
}

// Nop discards everything.
type Nop struct{}

func (Nop) PositionOpened(*types.Position) {}
func (Nop) TradeClosed(types.TradeRecord)  {}
