package service

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/fifoledger/internal/domain"
	"github.com/efreitasn/fifoledger/internal/engine"
	"github.com/efreitasn/fifoledger/internal/metrics"
	"github.com/efreitasn/fifoledger/internal/store"
)

// Symbols are opaque, case-sensitive tokens: no whitespace, 1 to 32 bytes.
var symbolRegex = regexp.MustCompile(`^\S{1,32}$`)

// RecordTradeRequest represents the input for recording a buy or sell.
type RecordTradeRequest struct {
	Symbol   string
	Side     domain.Side
	Price    *decimal.Decimal
	Quantity *decimal.Decimal
}

// RecordTradeResult lists the trades appended for a request. A buy yields
// one ID; a sell yields one ID per lot it consumed.
type RecordTradeResult struct {
	Symbol   string
	Side     domain.Side
	TradeIDs []int64
}

// PositionDetail is a single symbol's position with its open lots.
type PositionDetail struct {
	engine.Position
	Lots []engine.OpenLot
}

// LedgerService validates requests at the boundary and drives the ledger,
// the aggregator and the price book.
type LedgerService struct {
	ledger  *engine.Ledger
	prices  *store.PriceBook
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLedgerService creates a new LedgerService with the given dependencies.
func NewLedgerService(
	ledger *engine.Ledger,
	prices *store.PriceBook,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		ledger:  ledger,
		prices:  prices,
		metrics: m,
		logger:  logger,
	}
}

// RecordTrade validates the request and records it on the ledger.
// Sells that exceed the open quantity fail with
// domain.ErrInsufficientQuantity and leave the ledger unchanged.
func (s *LedgerService) RecordTrade(req RecordTradeRequest) (*RecordTradeResult, error) {
	if err := validateTradeRequest(req); err != nil {
		s.reject(req.Side, metrics.ReasonValidation)
		return nil, err
	}

	var ids []int64
	var err error
	if req.Side == domain.SideBuy {
		var id int64
		id, err = s.ledger.RecordBuy(req.Symbol, *req.Price, *req.Quantity)
		if err == nil {
			ids = []int64{id}
		}
	} else {
		ids, err = s.ledger.RecordSell(req.Symbol, *req.Price, *req.Quantity)
	}

	if err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrInsufficientQuantity):
			s.reject(req.Side, metrics.ReasonInsufficientQuantity)
			s.logger.Info("sell rejected",
				slog.String("symbol", req.Symbol),
				slog.String("quantity", req.Quantity.String()),
				slog.String("error", err.Error()),
			)
		case errors.As(err, &validationErr):
			s.reject(req.Side, metrics.ReasonValidation)
		}
		return nil, err
	}

	s.metrics.TradesRecorded.WithLabelValues(string(req.Side)).Inc()
	if req.Side == domain.SideSell {
		s.metrics.SellFragments.Add(float64(len(ids)))
	}
	s.metrics.OpenLots.Set(float64(s.ledger.OpenLotCount()))
	s.metrics.OpenQuantity.WithLabelValues(req.Symbol).Set(s.ledger.OpenQuantity(req.Symbol).InexactFloat64())

	s.logger.Debug("trade recorded",
		slog.String("side", string(req.Side)),
		slog.String("symbol", req.Symbol),
		slog.String("price", req.Price.String()),
		slog.String("quantity", req.Quantity.String()),
		slog.Any("trade_ids", ids),
	)

	return &RecordTradeResult{
		Symbol:   req.Symbol,
		Side:     req.Side,
		TradeIDs: ids,
	}, nil
}

// ListTrades returns the full trade log in ID order.
func (s *LedgerService) ListTrades() []domain.Trade {
	return s.ledger.Trades()
}

// Portfolio returns every open position keyed by symbol.
func (s *LedgerService) Portfolio() (map[string]engine.Position, error) {
	p, err := engine.Portfolio(s.ledger.Trades())
	if err != nil {
		s.logInvariant(err)
		return nil, err
	}
	return p, nil
}

// Position returns one symbol's position and open lots, both read from the
// same ledger snapshot. Symbols that were never traded yield
// domain.ErrSymbolNotFound; liquidated symbols yield a zero position.
func (s *LedgerService) Position(symbol string) (*PositionDetail, error) {
	snap := s.ledger.Snapshot(symbol)
	if !snap.Known {
		return nil, domain.ErrSymbolNotFound
	}

	p, err := engine.PositionOf(snap.Trades, symbol)
	if err != nil {
		s.logInvariant(err)
		return nil, err
	}
	return &PositionDetail{
		Position: p,
		Lots:     snap.Lots,
	}, nil
}

// GetTrade returns a single trade by ID.
func (s *LedgerService) GetTrade(id int64) (domain.Trade, error) {
	t, ok := s.ledger.Trade(id)
	if !ok {
		return domain.Trade{}, domain.ErrTradeNotFound
	}
	return t, nil
}

// PnL values the ledger at the price book, with overrides taking precedence
// for this call only. Overrides must be non-negative.
func (s *LedgerService) PnL(overrides map[string]decimal.Decimal) (engine.PnL, error) {
	prices := s.prices.Snapshot()
	for symbol, p := range overrides {
		if err := validatePrice(symbol, p); err != nil {
			return engine.PnL{}, err
		}
		prices[symbol] = p
	}

	pnl, err := engine.ComputePnL(s.ledger.Trades(), prices)
	if err != nil {
		s.logInvariant(err)
		return engine.PnL{}, err
	}
	if len(pnl.MissingPrices) > 0 {
		s.logger.Debug("open lots valued at zero", slog.Any("symbols", pnl.MissingPrices))
	}
	return pnl, nil
}

// Prices returns the current price book.
func (s *LedgerService) Prices() map[string]decimal.Decimal {
	return s.prices.Snapshot()
}

// SetPrice updates the price book. Returns true if the symbol had no
// price before.
func (s *LedgerService) SetPrice(symbol string, price *decimal.Decimal) (bool, error) {
	if price == nil {
		return false, &domain.ValidationError{Message: "price is required"}
	}
	if err := validatePrice(symbol, *price); err != nil {
		return false, err
	}
	return s.prices.Set(symbol, *price), nil
}

// Reset empties the ledger. The price book is left alone.
func (s *LedgerService) Reset() {
	cleared := s.ledger.TradeCount()
	s.ledger.Reset()
	s.metrics.OpenLots.Set(0)
	s.metrics.OpenQuantity.Reset()
	s.logger.Warn("ledger reset", slog.Int("trades_cleared", cleared))
}

func (s *LedgerService) reject(side domain.Side, reason string) {
	label := string(side)
	if !side.Valid() {
		label = "unknown"
	}
	s.metrics.TradeRejections.WithLabelValues(label, reason).Inc()
}

func (s *LedgerService) logInvariant(err error) {
	if errors.Is(err, domain.ErrUnknownReference) {
		s.logger.Error("trade log invariant violated", slog.String("error", err.Error()))
	}
}

func validateTradeRequest(req RecordTradeRequest) error {
	if !symbolRegex.MatchString(req.Symbol) {
		return &domain.ValidationError{
			Message: "symbol must be 1-32 characters without whitespace",
		}
	}
	if !req.Side.Valid() {
		return &domain.ValidationError{
			Message: fmt.Sprintf("Unknown side: %s. Must be one of: buy, sell", req.Side),
		}
	}
	if req.Price == nil {
		return &domain.ValidationError{Message: "price is required"}
	}
	if req.Quantity == nil {
		return &domain.ValidationError{Message: "quantity is required"}
	}
	return nil
}

func validatePrice(symbol string, price decimal.Decimal) error {
	if !symbolRegex.MatchString(symbol) {
		return &domain.ValidationError{
			Message: "symbol must be 1-32 characters without whitespace",
		}
	}
	if price.IsNegative() {
		return &domain.ValidationError{
			Message: fmt.Sprintf("price for %s must be >= 0", symbol),
		}
	}
	if err := domain.CheckDecimalBounds(price); err != nil {
		return &domain.ValidationError{
			Message: fmt.Sprintf("price for %s: %v", symbol, err),
		}
	}
	return nil
}
