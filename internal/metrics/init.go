package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-server/internal/logging"
)

// Serve starts the metrics HTTP listener on the given port. It blocks, so it
// is normally run in its own goroutine. Returns the http.Server error on exit.
func Serve(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logging.Info("Metrics listening on :%s/metrics", port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return srv.ListenAndServe()
}
