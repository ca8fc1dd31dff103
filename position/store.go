// Package position keeps the in-memory position book and runs the monitor
// loop that enforces exits.
package position

import (
	"errors"
	"sync"

	"github.com/evdnx/goqe/types"
)

// ErrDuplicate is returned when an open would violate the one-open-position
// per (pair, tradeType) rule.
var ErrDuplicate = errors.New("position: open position already exists for pair and trade type")

// Store is the process-wide position book. One open position per
// (pair, tradeType); closed positions leave the book and become trade
// records. The book is process-local and starts empty, so a live restart
// must reconcile open venue positions into it before trading resumes.
type Store struct {
	mu      sync.RWMutex
	open    map[string]*types.Position // by position ID
	byKey   map[string]string          // pair+tradeType -> position ID
	history []types.TradeRecord
}

// NewStore returns an empty book.
func NewStore() *Store {
	return &Store{
		open:  make(map[string]*types.Position),
		byKey: make(map[string]string),
	}
}

func key(pair string, tt types.TradeType) string { return pair + "/" + string(tt) }

// Add registers an open position. Fails with ErrDuplicate when the
// (pair, tradeType) slot is taken.
func (s *Store) Add(pos *types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(pos.Pair, pos.TradeType)
	if _, exists := s.byKey[k]; exists {
		return ErrDuplicate
	}
	s.open[pos.ID] = pos
	s.byKey[k] = pos.ID
	return nil
}

// HasOpen reports whether the (pair, tradeType) slot is taken. Engines call
// this before evaluating; the store's Add is the real serialization point.
func (s *Store) HasOpen(pair string, tt types.TradeType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[key(pair, tt)]
	return ok
}

// Get looks an open position up by ID.
func (s *Store) Get(id string) (*types.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.open[id]
	return pos, ok
}

// Open returns a snapshot slice of the open positions. The pointers are
// shared with the book; only the monitor mutates them.
func (s *Store) Open() []*types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Position, 0, len(s.open))
	for _, p := range s.open {
		out = append(out, p)
	}
	return out
}

// OpenByType returns the open positions of one trade type.
func (s *Store) OpenByType(tt types.TradeType) []*types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Position
	for _, p := range s.open {
		if p.TradeType == tt {
			out = append(out, p)
		}
	}
	return out
}

// OpenCount is the number of open positions.
func (s *Store) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.open)
}

// Exposure is the summed notional of all open positions.
func (s *Store) Exposure() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0.0
	for _, p := range s.open {
		total += p.Notional()
	}
	return total
}

// RecordClose removes the position from the book and appends the trade
// record to history.
func (s *Store) RecordClose(positionID string, rec types.TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.open[positionID]; ok {
		delete(s.byKey, key(pos.Pair, pos.TradeType))
		delete(s.open, positionID)
	}
	s.history = append(s.history, rec)
}

// History returns a copy of the closed-trade records.
func (s *Store) History() []types.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TradeRecord, len(s.history))
	copy(out, s.history)
	return out
}
