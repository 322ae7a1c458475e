package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ReadHeaderTimeout = 2 * time.Second
)

var (
	// ReconcileActions counts the outcome of every reconcile.
	ReconcileActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootorder_reconcile_actions_total",
			Help: "A counter metric to measure the number of reconciles by action and task state",
		},
		[]string{"action", "state"},
	)

	// TaskRunTimeSummary measures how long a reconcile task took.
	TaskRunTimeSummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "bootorder_task_runtime_seconds",
			Help: "A summary metric to measure the total time spent in completing each task",
		},
		[]string{"task", "state"},
	)

	// RemoteRequests counts requests made to the management API.
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bootorder_remote_requests_total",
			Help: "A counter metric to measure the requests made to the management API",
		},
		[]string{"method", "code"},
	)
)

// ListenAndServe exposes prometheus metrics on the endpoint, in the background.
func ListenAndServe(endpoint string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              endpoint,
			Handler:           mux,
			ReadHeaderTimeout: ReadHeaderTimeout,
		}

		if err := server.ListenAndServe(); err != nil {
			slog.Error("Failed to start metrics server", "error", err)
		}
	}()

	slog.Info("metrics enabled", "endpoint", endpoint+"/metrics")
}
