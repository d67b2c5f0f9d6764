package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
)

// NewRouter mounts the chat socket next to the operational endpoints.
// healthy reports whether the relay accepts traffic; /healthz answers 503 otherwise.
func NewRouter(chatPath string, chat http.Handler, gatherer prometheus.Gatherer, healthy func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(chatPath, chat)
	mux.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		if !healthy() {
			http.Error(w, "NOT_SERVING", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}
