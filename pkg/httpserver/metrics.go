package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaywantadh/gridstore/internal/transfer"
)

var (
	requestCountMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridstore",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of http requests handled, by response status code and HTTP method",
	}, []string{"code", "method"})
	requestsInFlightMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridstore",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being handled",
	})
	requestsDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gridstore",
		Subsystem: "http",
		Name:      "requests_duration_seconds",
		Help:      "Histogram of time spent processing requests, by response status code and HTTP method",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"code", "method"})
	transferBytesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridstore",
		Subsystem: "transfer",
		Name:      "bytes_total",
		Help:      "Bytes streamed through uploads and locator downloads, by direction",
	}, []string{"direction"})
)

func instrument(h http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(requestsInFlightMetric,
		promhttp.InstrumentHandlerDuration(requestsDurationMetric,
			promhttp.InstrumentHandlerCounter(requestCountMetric, h)))
}

func observeTransfer(s transfer.Snapshot) {
	transferBytesMetric.WithLabelValues(string(s.Direction)).Add(float64(s.Bytes))
}
