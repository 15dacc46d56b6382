package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/fifoledger/internal/domain"
	"github.com/efreitasn/fifoledger/internal/engine"
	"github.com/efreitasn/fifoledger/internal/service"
)

// PortfolioHandler handles HTTP requests for position and PnL endpoints.
type PortfolioHandler struct {
	ledgerSvc *service.LedgerService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(ledgerSvc *service.LedgerService) *PortfolioHandler {
	return &PortfolioHandler{ledgerSvc: ledgerSvc}
}

// positionResponse is one entry of GET /portfolio.
type positionResponse struct {
	Quantity          json.Number `json:"quantity"`
	AverageEntryPrice json.Number `json:"average_entry_price"`
}

// lotResponse is an open lot in the single-symbol response.
type lotResponse struct {
	BuyID     int64       `json:"buy_id"`
	Price     json.Number `json:"price"`
	Remaining json.Number `json:"remaining"`
}

// positionDetailResponse is the JSON response for GET /portfolio/{symbol}.
type positionDetailResponse struct {
	Symbol            string        `json:"symbol"`
	Quantity          json.Number   `json:"quantity"`
	AverageEntryPrice json.Number   `json:"average_entry_price"`
	Lots              []lotResponse `json:"lots"`
}

// pnlRequest is the JSON request body for POST /pnl.
type pnlRequest struct {
	Prices map[string]json.RawMessage `json:"prices"`
}

// pnlResponse is the JSON response for GET and POST /pnl.
type pnlResponse struct {
	RealizedPnL   json.Number `json:"realized_pnl"`
	UnrealizedPnL json.Number `json:"unrealized_pnl"`
	MissingPrices []string    `json:"missing_prices"`
}

// Get handles GET /portfolio.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.ledgerSvc.Portfolio()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make(map[string]positionResponse, len(portfolio))
	for symbol, p := range portfolio {
		resp[symbol] = positionResponse{
			Quantity:          domain.DecimalNumber(p.Quantity),
			AverageEntryPrice: domain.DecimalNumber(p.AverageEntryPrice),
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetSymbol handles GET /portfolio/{symbol}.
func (h *PortfolioHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	pos, err := h.ledgerSvc.Position(symbol)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	lots := make([]lotResponse, len(pos.Lots))
	for i, lot := range pos.Lots {
		lots[i] = lotResponse{
			BuyID:     lot.BuyID,
			Price:     domain.DecimalNumber(lot.Price),
			Remaining: domain.DecimalNumber(lot.Remaining),
		}
	}

	WriteJSON(w, http.StatusOK, positionDetailResponse{
		Symbol:            symbol,
		Quantity:          domain.DecimalNumber(pos.Quantity),
		AverageEntryPrice: domain.DecimalNumber(pos.AverageEntryPrice),
		Lots:              lots,
	})
}

// PnL handles GET /pnl, valuing open lots at the price book.
func (h *PortfolioHandler) PnL(w http.ResponseWriter, r *http.Request) {
	pnl, err := h.ledgerSvc.PnL(nil)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newPnLResponse(pnl))
}

// PnLWithPrices handles POST /pnl. Prices in the body override the price
// book for this request only.
func (h *PortfolioHandler) PnLWithPrices(w http.ResponseWriter, r *http.Request) {
	var req pnlRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	overrides := make(map[string]decimal.Decimal, len(req.Prices))
	for symbol, raw := range req.Prices {
		p, err := parseDecimalField("prices."+symbol, raw)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if p == nil {
			writeServiceError(w, &domain.ValidationError{Message: "prices." + symbol + " must not be null"})
			return
		}
		overrides[symbol] = *p
	}

	pnl, err := h.ledgerSvc.PnL(overrides)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newPnLResponse(pnl))
}

func newPnLResponse(pnl engine.PnL) pnlResponse {
	return pnlResponse{
		RealizedPnL:   domain.DecimalNumber(pnl.Realized),
		UnrealizedPnL: domain.DecimalNumber(pnl.Unrealized),
		MissingPrices: pnl.MissingPrices,
	}
}
