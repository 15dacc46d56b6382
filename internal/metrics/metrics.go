package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons used as the "reason" label of TradeRejections.
const (
	ReasonInsufficientQuantity = "insufficient_quantity"
	ReasonValidation           = "validation"
)

// Metrics holds the collectors exported on /metrics. Collectors are
// registered on the registry passed to New, never on the global default,
// so tests can build as many instances as they like.
type Metrics struct {
	TradesRecorded  *prometheus.CounterVec
	SellFragments   prometheus.Counter
	TradeRejections *prometheus.CounterVec
	OpenLots        prometheus.Gauge
	OpenQuantity    *prometheus.GaugeVec
	HTTPDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TradesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fifoledger_trades_recorded_total",
			Help: "Trade requests accepted by the ledger, by side.",
		},
			[]string{"side"},
		),
		SellFragments: factory.NewCounter(prometheus.CounterOpts{
			Name: "fifoledger_sell_fragments_total",
			Help: "Sell trades appended to the log, one per lot consumed.",
		}),
		TradeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fifoledger_trade_rejections_total",
			Help: "Trade requests rejected before touching the log, by side and reason.",
		},
			[]string{"side", "reason"},
		),
		OpenLots: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fifoledger_open_lots",
			Help: "Buy lots with a positive unconsumed quantity.",
		}),
		OpenQuantity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fifoledger_open_quantity",
			Help: "Unconsumed quantity per symbol.",
		},
			[]string{"symbol"},
		),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fifoledger_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status.",
			Buckets: prometheus.DefBuckets,
		},
			[]string{"method", "route", "status"},
		),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{
		MaxRequestsInFlight: 5,
		Timeout:             30 * time.Second,
	})
}
