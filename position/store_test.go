package position

import (
	"errors"
	"testing"

	"github.com/evdnx/goqe/types"
)

func pos(id, pair string, tt types.TradeType) *types.Position {
	return &types.Position{
		ID: id, Pair: pair, TradeType: tt,
		Direction: types.Long, EntryPrice: 100, Size: 100, Leverage: 2,
		Status: types.StatusOpen,
	}
}

// One open position per (pair, tradeType): a funding position and a
// directional one coexist on the same pair, a second directional does not.
func TestStoreSlotRule(t *testing.T) {
	s := NewStore()

	if err := s.Add(pos("a", "BTCUSDT", types.TradeDirectional)); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := s.Add(pos("b", "BTCUSDT", types.TradeFunding)); err != nil {
		t.Fatalf("funding slot should be independent: %v", err)
	}
	if err := s.Add(pos("c", "BTCUSDT", types.TradeDirectional)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if !s.HasOpen("BTCUSDT", types.TradeDirectional) {
		t.Fatalf("directional slot should read occupied")
	}
	if s.HasOpen("ETHUSDT", types.TradeDirectional) {
		t.Fatalf("other pair should read free")
	}
	if n := s.OpenCount(); n != 2 {
		t.Fatalf("open count: want 2, got %d", n)
	}
	if e := s.Exposure(); e != 400 {
		t.Fatalf("exposure: want 400 (2x 100*2), got %f", e)
	}
}

// Closing frees the slot and appends to history; the record survives even
// though the position leaves the book.
func TestStoreRecordClose(t *testing.T) {
	s := NewStore()
	p := pos("a", "BTCUSDT", types.TradeDirectional)
	if err := s.Add(p); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	s.RecordClose("a", types.TradeRecord{PositionID: "a", Pair: "BTCUSDT", Pnl: 5})

	if s.HasOpen("BTCUSDT", types.TradeDirectional) {
		t.Fatalf("slot should be free after close")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatalf("closed position should leave the open book")
	}
	hist := s.History()
	if len(hist) != 1 || hist[0].PositionID != "a" {
		t.Fatalf("history should hold the trade record, got %+v", hist)
	}

	// The slot is reusable after the close.
	if err := s.Add(pos("d", "BTCUSDT", types.TradeDirectional)); err != nil {
		t.Fatalf("slot should be reusable: %v", err)
	}
}

func TestStoreOpenByType(t *testing.T) {
	s := NewStore()
	_ = s.Add(pos("a", "BTCUSDT", types.TradeDirectional))
	_ = s.Add(pos("b", "ETHUSDT", types.TradeFunding))
	_ = s.Add(pos("c", "SOLUSDT", types.TradeFunding))

	funding := s.OpenByType(types.TradeFunding)
	if len(funding) != 2 {
		t.Fatalf("want 2 funding positions, got %d", len(funding))
	}
	for _, p := range funding {
		if p.TradeType != types.TradeFunding {
			t.Fatalf("wrong trade type in filter: %+v", p)
		}
	}
}
