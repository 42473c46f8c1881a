package worker

import (
	"net/http"
)

// HealthHandler serves /healthz and /readyz for the worker process on one
// mux.
func HealthHandler(deps ReadinessDeps, isShuttingDown func() bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/readyz", ReadyHandler(deps, isShuttingDown))

	return mux
}
