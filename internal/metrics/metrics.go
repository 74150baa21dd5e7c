package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exit outcomes used as the "outcome" label.
const (
	OutcomeClean    = "clean"    // exit code 0
	OutcomeFailed   = "failed"   // non-zero exit code
	OutcomeSignaled = "signaled" // terminated by a signal
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	backendStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uroflow",
			Subsystem: "backend",
			Name:      "starts_total",
			Help:      "Number of successful backend spawns.",
		},
	)
	backendSpawnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uroflow",
			Subsystem: "backend",
			Name:      "spawn_failures_total",
			Help:      "Number of backend spawn attempts that failed before the process ran.",
		},
	)
	backendExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uroflow",
			Subsystem: "backend",
			Name:      "exits_total",
			Help:      "Number of observed backend exits by outcome.",
		}, []string{"outcome"},
	)
	backendStopRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uroflow",
			Subsystem: "backend",
			Name:      "stop_requests_total",
			Help:      "Number of termination signals sent to the backend.",
		},
	)
	backendUptime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "uroflow",
			Subsystem: "backend",
			Name:      "uptime_seconds",
			Help:      "Lifetime of each backend run.",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 4 * 3600},
		},
	)
	backendRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "uroflow",
			Subsystem: "backend",
			Name:      "running",
			Help:      "1 while a backend process is active, else 0.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{backendStarts, backendSpawnFailures, backendExits, backendStopRequests, backendUptime, backendRunning}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr. It blocks like http.ListenAndServe.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}

// Below are lightweight helpers used by the supervisor to record metrics.
// They no-op if Register hasn't been called.

func IncStart() {
	if regOK.Load() {
		backendStarts.Inc()
		backendRunning.Set(1)
	}
}

func IncSpawnFailure() {
	if regOK.Load() {
		backendSpawnFailures.Inc()
	}
}

func IncStopRequest() {
	if regOK.Load() {
		backendStopRequests.Inc()
	}
}

// ObserveExit records one finished run. ran is zero when the process never started.
func ObserveExit(outcome string, ran time.Duration) {
	if regOK.Load() {
		backendExits.WithLabelValues(outcome).Inc()
		backendRunning.Set(0)
		if ran > 0 {
			backendUptime.Observe(ran.Seconds())
		}
	}
}
