package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/fifoledger/internal/domain"
	"github.com/efreitasn/fifoledger/internal/service"
)

// TradeHandler handles HTTP requests for trade endpoints.
type TradeHandler struct {
	ledgerSvc   *service.LedgerService
	enableReset bool
}

// NewTradeHandler creates a new TradeHandler. DELETE /trades answers 404
// unless enableReset is set.
func NewTradeHandler(ledgerSvc *service.LedgerService, enableReset bool) *TradeHandler {
	return &TradeHandler{ledgerSvc: ledgerSvc, enableReset: enableReset}
}

// recordTradeRequest is the JSON request body for POST /trades.
// Price and quantity accept a JSON number or a numeric string.
type recordTradeRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Price    json.RawMessage `json:"price"`
	Quantity json.RawMessage `json:"quantity"`
}

// recordTradeResponse is the JSON response for POST /trades.
type recordTradeResponse struct {
	Status   string  `json:"status"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	TradeIDs []int64 `json:"trade_ids"`
}

// tradeResponse is a single entry of the trade log.
type tradeResponse struct {
	TradeID     int64       `json:"trade_id"`
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	Price       json.Number `json:"price"`
	Quantity    json.Number `json:"quantity"`
	ReferenceID *int64      `json:"reference_id"`
	ExecutedAt  string      `json:"executed_at"`
}

// listTradesResponse is the JSON response for GET /trades.
type listTradesResponse struct {
	Trades []tradeResponse `json:"trades"`
}

// Record handles POST /trades.
func (h *TradeHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordTradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	price, err := parseDecimalField("price", req.Price)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	quantity, err := parseDecimalField("quantity", req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.ledgerSvc.RecordTrade(service.RecordTradeRequest{
		Symbol:   req.Symbol,
		Side:     domain.Side(req.Side),
		Price:    price,
		Quantity: quantity,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, recordTradeResponse{
		Status:   "ok",
		Symbol:   res.Symbol,
		Side:     string(res.Side),
		TradeIDs: res.TradeIDs,
	})
}

// List handles GET /trades.
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	trades := h.ledgerSvc.ListTrades()

	resp := listTradesResponse{Trades: make([]tradeResponse, len(trades))}
	for i, t := range trades {
		resp.Trades[i] = newTradeResponse(t)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /trades/{id}.
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeServiceError(w, domain.ErrTradeNotFound)
		return
	}

	t, err := h.ledgerSvc.GetTrade(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, newTradeResponse(t))
}

func newTradeResponse(t domain.Trade) tradeResponse {
	tr := tradeResponse{
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Price:      domain.DecimalNumber(t.Price),
		Quantity:   domain.DecimalNumber(t.Quantity),
		ExecutedAt: t.ExecutedAt.UTC().Format(timeFormat),
	}
	if t.IsSell() {
		ref := t.ReferenceID
		tr.ReferenceID = &ref
	}
	return tr
}

// Reset handles DELETE /trades.
func (h *TradeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.enableReset {
		WriteError(w, http.StatusNotFound, "not_found", "Reset is disabled")
		return
	}

	h.ledgerSvc.Reset()
	w.WriteHeader(http.StatusNoContent)
}
