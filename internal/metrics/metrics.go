package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fulfillment"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ordersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Order placement attempts by processor and outcome",
		},
		[]string{"processor", "outcome"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_stage_duration_seconds",
			Help:      "Duration of each order processing stage",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"processor", "stage"},
	)

	lockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_lock_contention_total",
			Help:      "Row lock waits that timed out",
		},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_of_work_retries_total",
			Help:      "Units of work retried after contention",
		},
		[]string{"operation"},
	)

	cancellationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_cancellations_total",
			Help:      "Order cancellations by outcome",
		},
		[]string{"outcome"},
	)

	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment gateway calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Order events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	shipmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipments_total",
			Help:      "Shipment registrations by carrier and outcome",
		},
		[]string{"carrier", "operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		ordersPlacedTotal,
		stageDuration,
		lockContentionTotal,
		retriesTotal,
		cancellationsTotal,
		paymentsTotal,
		eventsTotal,
		shipmentsTotal,
	)
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordOrderPlaced(processor, outcome string) {
	ordersPlacedTotal.WithLabelValues(processor, outcome).Inc()
}

func ObserveStage(processor, stage string, d time.Duration) {
	stageDuration.WithLabelValues(processor, stage).Observe(d.Seconds())
}

func RecordLockContention() {
	lockContentionTotal.Inc()
}

func RecordRetry(operation string) {
	retriesTotal.WithLabelValues(operation).Inc()
}

func RecordCancellation(outcome string) {
	cancellationsTotal.WithLabelValues(outcome).Inc()
}

func RecordPayment(operation, outcome string) {
	paymentsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordEvent(eventType, outcome string) {
	eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func RecordShipment(carrier, operation, outcome string) {
	shipmentsTotal.WithLabelValues(carrier, operation, outcome).Inc()
}
