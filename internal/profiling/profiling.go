package profiling

import (
	"log/slog"
	"net/http"
	// nolint:gosec // profiling endpoint is opt-in and bound to localhost by default
	_ "net/http/pprof"
	"time"
)

const (
	ReadHeaderTimeout = 2 * time.Second
)

// Enable the profiling endpoint
func Enable(endpoint string) {
	go func() {
		server := &http.Server{
			Addr:              endpoint,
			ReadHeaderTimeout: ReadHeaderTimeout,
		}

		if err := server.ListenAndServe(); err != nil {
			slog.Error("Failed to start profiling server", "error", err)
		}
	}()

	slog.Info("profiling enabled", "endpoint", endpoint+"/debug/pprof")
}
