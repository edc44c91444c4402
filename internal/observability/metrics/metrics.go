package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circulation_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "circulation_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loansCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circulation_loans_created_total",
		Help: "Count of loan creation attempts by result",
	}, []string{"result"})

	loansReturned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circulation_loans_returned_total",
		Help: "Count of book return attempts by result",
	}, []string{"result"})

	loanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "circulation_loan_duration_days",
		Help:    "Distribution of completed loan durations in days",
		Buckets: []float64{1, 3, 7, 14, 21, 30, 45, 60, 90},
	})

	activeLoans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circulation_active_loans",
		Help: "Number of loans without a return date",
	})

	overdueLoans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circulation_overdue_loans",
		Help: "Number of active loans past the loan period",
	})

	cacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circulation_book_cache_operations_total",
		Help: "Count of book cache lookups by outcome",
	}, []string{"outcome"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLoanCreated increments the loan creation counter with a result label.
func ObserveLoanCreated(result string) {
	loansCreated.WithLabelValues(result).Inc()
}

// ObserveLoanReturned increments the return counter with a result label.
func ObserveLoanReturned(result string) {
	loansReturned.WithLabelValues(result).Inc()
}

// ObserveLoanDuration records how long a completed loan was out.
func ObserveLoanDuration(d time.Duration) {
	loanDuration.Observe(d.Hours() / 24)
}

// SetActiveLoans sets the active loan gauge.
func SetActiveLoans(count int) {
	if count < 0 {
		count = 0
	}
	activeLoans.Set(float64(count))
}

// SetOverdueLoans sets the overdue loan gauge.
func SetOverdueLoans(count int) {
	if count < 0 {
		count = 0
	}
	overdueLoans.Set(float64(count))
}

// ObserveCacheLookup records a book cache lookup outcome (hit, miss, error, bypass).
func ObserveCacheLookup(outcome string) {
	cacheOperations.WithLabelValues(outcome).Inc()
}
