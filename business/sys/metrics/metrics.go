// Package metrics provides the prometheus instruments for the node.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cadcoin"

var (
	txSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "transactions_submitted_total",
		Help:      "Count of submitted transactions by kind and result.",
	}, []string{"kind", "status"})

	blocksMined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mining",
		Name:      "blocks_total",
		Help:      "Count of blocks mined by this node.",
	})
	miningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "mining",
		Name:      "duration_seconds",
		Help:      "Duration of successful mining operations.",
		Buckets:   []float64{.01, .1, .5, 1, 5, 10, 30, 60, 300},
	})
	miningFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mining",
		Name:      "failures_total",
		Help:      "Count of failed mining operations by reason.",
	}, []string{"reason"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	httpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Count of HTTP requests that returned an error.",
	}, []string{"method", "route"})
	panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Count of recovered handler panics.",
	})
)

// ObserveSubmit records the result of a transaction submission.
func ObserveSubmit(kind string, err error) {
	status := "accepted"
	if err != nil {
		status = "rejected"
	}

	txSubmitted.WithLabelValues(kind, status).Inc()
}

// ObserveMining records the result of a mining operation.
func ObserveMining(err error, took time.Duration) {
	if err == nil {
		blocksMined.Inc()
		miningDuration.Observe(took.Seconds())
		return
	}

	miningFailures.WithLabelValues(failureReason(err)).Inc()
}

// ObserveRequest records a completed HTTP request.
func ObserveRequest(method string, route string, statusCode int, failed bool, started time.Time) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())

	if failed {
		httpErrors.WithLabelValues(method, route).Inc()
	}
}

// AddPanic records a recovered panic.
func AddPanic() {
	panics.Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, state.ErrMiningTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, state.ErrInternalInconsistency):
		return "inconsistent"
	default:
		return "error"
	}
}
