package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// outcome：ok 或 apperr 的错误类别，其余为 internal
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelapi_requests_total",
		Help: "Total number of /process-shapefile requests by outcome",
	}, []string{"outcome"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcelapi_request_duration_ms",
		Help:    "Processing duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	UploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcelapi_upload_bytes",
		Help:    "Size of uploaded archives in bytes",
		Buckets: prometheus.ExponentialBuckets(1<<10, 4, 10),
	})
	ParcelsNumberedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parcelapi_parcels_numbered_total",
		Help: "Total parcels assigned a parcel_id",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parcelapi_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(UploadBytes)
	prometheus.MustRegister(ParcelsNumberedTotal)
	prometheus.MustRegister(RateLimitedTotal)
}

// Handler：Prometheus 抓取端点
func Handler() http.Handler { return promhttp.Handler() }
