package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-server/internal/logging"
	"media-server/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

var serverStart = time.Now()

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Ready        bool   `json:"ready"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	TotalFiles   int    `json:"totalFiles"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports overall service health. 503 until the initial scan has
// completed, since listing totals are not stable before that.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.readiness.Ready()

	total, err := h.store.Count(r.Context())
	if err != nil {
		logging.Error("health: count failed: %v", err)
	}

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(serverStart).Round(time.Second).String(),
		TotalFiles:   total,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// LivenessCheck always answers 200 while the process serves requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "alive"})
}

// ReadinessCheck answers 200 once the initial scan is done, 503 before.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.readiness.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}
