package service

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/fifoledger/internal/domain"
	"github.com/efreitasn/fifoledger/internal/engine"
	"github.com/efreitasn/fifoledger/internal/metrics"
	"github.com/efreitasn/fifoledger/internal/store"
)

// newTestLedgerService creates a LedgerService with fresh dependencies for testing.
func newTestLedgerService(seed map[string]decimal.Decimal) (*LedgerService, *engine.Ledger, *metrics.Metrics) {
	ledger := engine.NewLedger(store.NewTradeLog(), domain.NewSymbolRegistry())
	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewLedgerService(ledger, store.NewPriceBook(seed), m, logger)
	return svc, ledger, m
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func tradeReq(side domain.Side, symbol, price, qty string) RecordTradeRequest {
	return RecordTradeRequest{
		Symbol:   symbol,
		Side:     side,
		Price:    decPtr(price),
		Quantity: decPtr(qty),
	}
}

func mustRecord(t *testing.T, svc *LedgerService, req RecordTradeRequest) *RecordTradeResult {
	t.Helper()
	res, err := svc.RecordTrade(req)
	if err != nil {
		t.Fatalf("RecordTrade(%+v): %v", req, err)
	}
	return res
}

// --- RecordTrade tests ---

func TestRecordTrade_Buy(t *testing.T) {
	svc, _, m := newTestLedgerService(nil)

	res := mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	if res.Side != domain.SideBuy || res.Symbol != "BTC" {
		t.Errorf("result = %+v, want buy BTC", res)
	}
	if !slices.Equal(res.TradeIDs, []int64{1}) {
		t.Errorf("TradeIDs = %v, want [1]", res.TradeIDs)
	}

	if got := testutil.ToFloat64(m.TradesRecorded.WithLabelValues("buy")); got != 1 {
		t.Errorf("trades recorded (buy) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OpenLots); got != 1 {
		t.Errorf("open lots = %v, want 1", got)
	}
}

func TestRecordTrade_SellFansOut(t *testing.T) {
	svc, _, m := newTestLedgerService(nil)
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "42000", "1"))

	res := mustRecord(t, svc, tradeReq(domain.SideSell, "BTC", "43000", "1.5"))
	if !slices.Equal(res.TradeIDs, []int64{3, 4}) {
		t.Errorf("TradeIDs = %v, want [3 4]", res.TradeIDs)
	}

	if got := testutil.ToFloat64(m.SellFragments); got != 2 {
		t.Errorf("sell fragments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TradesRecorded.WithLabelValues("sell")); got != 1 {
		t.Errorf("trades recorded (sell) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OpenLots); got != 1 {
		t.Errorf("open lots = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OpenQuantity.WithLabelValues("BTC")); got != 0.5 {
		t.Errorf("open quantity (BTC) = %v, want 0.5", got)
	}
}

func TestRecordTrade_InsufficientQuantity(t *testing.T) {
	svc, ledger, m := newTestLedgerService(nil)
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))

	_, err := svc.RecordTrade(tradeReq(domain.SideSell, "BTC", "41000", "2"))
	if !errors.Is(err, domain.ErrInsufficientQuantity) {
		t.Fatalf("expected ErrInsufficientQuantity, got %v", err)
	}
	if n := len(ledger.Trades()); n != 1 {
		t.Errorf("log length = %d, want 1", n)
	}
	if got := testutil.ToFloat64(m.TradeRejections.WithLabelValues("sell", metrics.ReasonInsufficientQuantity)); got != 1 {
		t.Errorf("insufficient rejections = %v, want 1", got)
	}
}

func TestRecordTrade_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RecordTradeRequest
	}{
		{"empty symbol", tradeReq(domain.SideBuy, "", "1", "1")},
		{"symbol with space", tradeReq(domain.SideBuy, "BT C", "1", "1")},
		{"symbol too long", tradeReq(domain.SideBuy, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456", "1", "1")},
		{"unknown side", tradeReq(domain.Side("hold"), "BTC", "1", "1")},
		{"missing price", RecordTradeRequest{Symbol: "BTC", Side: domain.SideBuy, Quantity: decPtr("1")}},
		{"missing quantity", RecordTradeRequest{Symbol: "BTC", Side: domain.SideBuy, Price: decPtr("1")}},
		{"zero quantity", tradeReq(domain.SideBuy, "BTC", "1", "0")},
		{"negative price", tradeReq(domain.SideSell, "BTC", "-1", "1")},
		{"quantity exponent out of range", tradeReq(domain.SideBuy, "BTC", "1", "1e50000000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, ledger, m := newTestLedgerService(nil)

			_, err := svc.RecordTrade(tt.req)
			var validationErr *domain.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if n := len(ledger.Trades()); n != 0 {
				t.Errorf("log length = %d, want 0", n)
			}

			label := string(tt.req.Side)
			if !tt.req.Side.Valid() {
				label = "unknown"
			}
			if got := testutil.ToFloat64(m.TradeRejections.WithLabelValues(label, metrics.ReasonValidation)); got != 1 {
				t.Errorf("validation rejections = %v, want 1", got)
			}
		})
	}
}

// --- Portfolio / Position tests ---

func TestPortfolio(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	mustRecord(t, svc, tradeReq(domain.SideBuy, "ETH", "2000", "3"))
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "42000", "1"))

	p, err := svc.Portfolio()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p) != 2 {
		t.Fatalf("portfolio = %v, want BTC and ETH", p)
	}
	if !p["BTC"].AverageEntryPrice.Equal(decimal.NewFromInt(41000)) {
		t.Errorf("BTC average = %s, want 41000", p["BTC"].AverageEntryPrice)
	}
}

func TestPosition_NotFound(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)

	_, err := svc.Position("BTC")
	if !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestPosition_WithLots(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "42000", "1"))
	mustRecord(t, svc, tradeReq(domain.SideSell, "BTC", "43000", "1.5"))

	pos, err := svc.Position("BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.Quantity.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("quantity = %s, want 0.5", pos.Quantity)
	}
	if len(pos.Lots) != 1 || pos.Lots[0].BuyID != 2 {
		t.Errorf("lots = %+v, want only buy 2", pos.Lots)
	}
}

func TestPosition_Liquidated(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	mustRecord(t, svc, tradeReq(domain.SideSell, "BTC", "41000", "1"))

	pos, err := svc.Position("BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.Quantity.IsZero() || len(pos.Lots) != 0 {
		t.Errorf("position = %+v, want zero with no lots", pos)
	}
}

// --- PnL tests ---

func TestPnL_UsesPriceBook(t *testing.T) {
	svc, _, _ := newTestLedgerService(map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(45000),
	})
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "42000", "1"))
	mustRecord(t, svc, tradeReq(domain.SideSell, "BTC", "43000", "1"))

	pnl, err := svc.PnL(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pnl.Realized.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("realized = %s, want 3000", pnl.Realized)
	}
	if !pnl.Unrealized.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("unrealized = %s, want 3000", pnl.Unrealized)
	}
}

func TestPnL_OverridesDoNotPersist(t *testing.T) {
	svc, _, _ := newTestLedgerService(map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(45000),
	})
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))

	pnl, err := svc.PnL(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(39000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pnl.Unrealized.Equal(decimal.NewFromInt(-1000)) {
		t.Errorf("unrealized with override = %s, want -1000", pnl.Unrealized)
	}

	pnl, _ = svc.PnL(nil)
	if !pnl.Unrealized.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("unrealized after override = %s, want 5000", pnl.Unrealized)
	}
}

func TestPnL_RejectsNegativeOverride(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)

	_, err := svc.PnL(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(-1)})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPnL_MissingPrice(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)
	mustRecord(t, svc, tradeReq(domain.SideBuy, "SOL", "100", "2"))

	pnl, err := svc.PnL(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pnl.Unrealized.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("unrealized = %s, want -200", pnl.Unrealized)
	}
	if !slices.Equal(pnl.MissingPrices, []string{"SOL"}) {
		t.Errorf("MissingPrices = %v, want [SOL]", pnl.MissingPrices)
	}
}

// --- Price book tests ---

func TestSetPrice(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)

	created, err := svc.SetPrice("BTC", decPtr("43000"))
	if err != nil || !created {
		t.Fatalf("SetPrice = %v, %v; want true, nil", created, err)
	}
	created, err = svc.SetPrice("BTC", decPtr("0"))
	if err != nil || created {
		t.Fatalf("SetPrice = %v, %v; want false, nil", created, err)
	}
	if p := svc.Prices()["BTC"]; !p.IsZero() {
		t.Errorf("BTC price = %s, want 0", p)
	}

	var validationErr *domain.ValidationError
	if _, err := svc.SetPrice("BTC", decPtr("-1")); !errors.As(err, &validationErr) {
		t.Errorf("negative price: expected ValidationError, got %v", err)
	}
	if _, err := svc.SetPrice("BTC", nil); !errors.As(err, &validationErr) {
		t.Errorf("nil price: expected ValidationError, got %v", err)
	}
	if _, err := svc.SetPrice("BTC", decPtr("1e-40")); !errors.As(err, &validationErr) {
		t.Errorf("out of range price: expected ValidationError, got %v", err)
	}
}

// --- Reset tests ---

func TestReset(t *testing.T) {
	svc, ledger, m := newTestLedgerService(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1)})
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))

	svc.Reset()

	if n := len(ledger.Trades()); n != 0 {
		t.Errorf("log length = %d after Reset, want 0", n)
	}
	if got := testutil.ToFloat64(m.OpenLots); got != 0 {
		t.Errorf("open lots = %v after Reset, want 0", got)
	}
	if n := testutil.CollectAndCount(m.OpenQuantity); n != 0 {
		t.Errorf("open quantity series = %d after Reset, want 0", n)
	}
	if _, ok := svc.Prices()["BTC"]; !ok {
		t.Error("Reset should leave the price book alone")
	}
	res := mustRecord(t, svc, tradeReq(domain.SideBuy, "ETH", "2000", "1"))
	if res.TradeIDs[0] != 1 {
		t.Errorf("first id after Reset = %d, want 1", res.TradeIDs[0])
	}
}

func TestPosition_ConsistentUnderConcurrentSells(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)
	for i := 0; i < 20; i++ {
		mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.RecordTrade(tradeReq(domain.SideSell, "BTC", "41000", "0.5"))
		}()
	}

	for i := 0; i < 200; i++ {
		pos, err := svc.Position("BTC")
		if err != nil {
			t.Fatalf("Position: %v", err)
		}
		sum := decimal.Zero
		for _, lot := range pos.Lots {
			sum = sum.Add(lot.Remaining)
		}
		if !sum.Equal(pos.Quantity) {
			t.Fatalf("lots sum to %s, quantity is %s", sum, pos.Quantity)
		}
	}
	wg.Wait()
}

func TestGetTrade(t *testing.T) {
	svc, _, _ := newTestLedgerService(nil)
	mustRecord(t, svc, tradeReq(domain.SideBuy, "BTC", "40000", "1"))
	res := mustRecord(t, svc, tradeReq(domain.SideSell, "BTC", "41000", "0.4"))

	tr, err := svc.GetTrade(res.TradeIDs[0])
	if err != nil {
		t.Fatalf("GetTrade: %v", err)
	}
	if !tr.IsSell() || tr.ReferenceID != 1 || !tr.Quantity.Equal(decimal.RequireFromString("0.4")) {
		t.Errorf("trade = %+v, want sell of 0.4 against buy 1", tr)
	}

	if _, err := svc.GetTrade(99); !errors.Is(err, domain.ErrTradeNotFound) {
		t.Errorf("GetTrade(99) error = %v, want ErrTradeNotFound", err)
	}
}
