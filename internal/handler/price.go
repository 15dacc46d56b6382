package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/fifoledger/internal/domain"
	"github.com/efreitasn/fifoledger/internal/service"
)

// PriceHandler handles HTTP requests for the price book.
type PriceHandler struct {
	ledgerSvc *service.LedgerService
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(ledgerSvc *service.LedgerService) *PriceHandler {
	return &PriceHandler{ledgerSvc: ledgerSvc}
}

// setPriceRequest is the JSON request body for PUT /prices/{symbol}.
type setPriceRequest struct {
	Price json.RawMessage `json:"price"`
}

// priceResponse is the JSON response for PUT /prices/{symbol}.
type priceResponse struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

// List handles GET /prices.
func (h *PriceHandler) List(w http.ResponseWriter, r *http.Request) {
	prices := h.ledgerSvc.Prices()

	resp := make(map[string]json.Number, len(prices))
	for symbol, p := range prices {
		resp[symbol] = domain.DecimalNumber(p)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Set handles PUT /prices/{symbol}. Returns 201 when the symbol had no
// price before, 200 otherwise.
func (h *PriceHandler) Set(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req setPriceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	price, err := parseDecimalField("price", req.Price)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	created, err := h.ledgerSvc.SetPrice(symbol, price)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, priceResponse{
		Symbol: symbol,
		Price:  domain.DecimalNumber(*price),
	})
}
