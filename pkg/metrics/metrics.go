package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "datalake"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// Uploads counts ingestion attempts by outcome: ok, unsupported_format,
	// duplicate, decode_error, missing_columns, parse_error, store_error.
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "uploads_total", Help: "Number of file uploads by outcome."},
		[]string{"outcome"},
	)
	RecordsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "records_ingested_total", Help: "Number of rows persisted to the datalake collection."},
	)
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "auth_attempts_total", Help: "Register/login attempts by operation and result."},
		[]string{"op", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Uploads)
	reg.MustRegister(RecordsIngested)
	reg.MustRegister(AuthAttempts)
}
