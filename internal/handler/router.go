package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/efreitasn/fifoledger/internal/metrics"
	"github.com/efreitasn/fifoledger/internal/service"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RouterOptions toggles optional routes.
type RouterOptions struct {
	EnableReset bool
}

// NewRouter creates a chi router with all routes registered, request ids,
// panic recovery, request logging and metrics, and Content-Type validation
// middleware.
func NewRouter(
	ledgerSvc *service.LedgerService,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts RouterOptions,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestID)
	r.Use(requestLogging(logger, m))
	r.Use(recoverer(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	tradeH := NewTradeHandler(ledgerSvc, opts.EnableReset)
	portfolioH := NewPortfolioHandler(ledgerSvc)
	priceH := NewPriceHandler(ledgerSvc)

	// Health checks.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "running"})
	})

	// Trade routes.
	r.Post("/trades", tradeH.Record)
	r.Get("/trades", tradeH.List)
	r.Get("/trades/{id}", tradeH.Get)
	r.Delete("/trades", tradeH.Reset)

	// Position and PnL routes.
	r.Get("/portfolio", portfolioH.Get)
	r.Get("/portfolio/{symbol}", portfolioH.GetSymbol)
	r.Get("/pnl", portfolioH.PnL)
	r.Post("/pnl", portfolioH.PnLWithPrices)

	// Price book routes.
	r.Get("/prices", priceH.List)
	r.Put("/prices/{symbol}", priceH.Set)

	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}

// requestID reuses the client's X-Request-ID or assigns a new UUID, and
// echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog, and observes the duration in the
// HTTP latency histogram keyed by route pattern.
func requestLogging(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.status)).Observe(elapsed.Seconds())

			logger.Info("request",
				slog.String("request_id", r.Header.Get(RequestIDHeader)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}

// recoverer turns a panic in a handler into a JSON 500 without exposing
// the panic value to the client.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic serving request",
						slog.String("request_id", r.Header.Get(RequestIDHeader)),
						slog.Any("panic", rec),
					)
					WriteError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
