package store

import (
	"sync"

	"github.com/efreitasn/fifoledger/internal/domain"
)

// TradeLog is a thread-safe in-memory append-only log of trades in
// creation order, with a secondary index by trade ID.
type TradeLog struct {
	mu     sync.RWMutex
	trades []domain.Trade
	byID   map[int64]int // trade_id → position in trades
}

// NewTradeLog creates an empty TradeLog.
func NewTradeLog() *TradeLog {
	return &TradeLog{
		byID: make(map[int64]int),
	}
}

// Append adds trades to the end of the log in the given order.
// Callers assign IDs; the log does not renumber them.
func (s *TradeLog) Append(trades ...domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range trades {
		s.byID[t.ID] = len(s.trades)
		s.trades = append(s.trades, t)
	}
}

// Get returns the trade with the given ID.
func (s *TradeLog) Get(id int64) (domain.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return domain.Trade{}, false
	}
	return s.trades[i], true
}

// All returns every trade in creation order.
// Returns an empty slice if the log is empty.
func (s *TradeLog) All() []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]domain.Trade, len(s.trades))
	copy(result, s.trades)
	return result
}

// Len returns the number of trades in the log.
func (s *TradeLog) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// Clear empties the log.
func (s *TradeLog) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = nil
	s.byID = make(map[int64]int)
}
