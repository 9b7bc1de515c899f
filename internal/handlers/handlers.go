package handlers

import (
	"encoding/json"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"media-server/internal/index"
	"media-server/internal/logging"
	"media-server/internal/repcache"

	"github.com/gorilla/mux"
)

// ReadinessReporter reports whether the indexing pipeline has finished its
// initial scan.
type ReadinessReporter interface {
	Ready() bool
}

// Handlers bundles the API's dependencies.
type Handlers struct {
	store     *index.Store
	cache     *repcache.Cache
	readiness ReadinessReporter
	mediaDir  string
}

// New returns handlers serving files under mediaDir.
func New(store *index.Store, cache *repcache.Cache, readiness ReadinessReporter, mediaDir string) *Handlers {
	return &Handlers{
		store:     store,
		cache:     cache,
		readiness: readiness,
		mediaDir:  filepath.Clean(mediaDir),
	}
}

// RegisterRoutes attaches all API routes to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/files", h.ListFiles).Methods(http.MethodGet)
	r.HandleFunc("/api/file", h.GetFile).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{path:.*}", h.ServeUpload).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
}

// resolvePath validates a client-supplied path and maps it to the record key
// and the absolute filesystem path. ok is false for anything that would
// escape the media root; callers must answer 403 without touching the index
// or filesystem.
func (h *Handlers) resolvePath(raw string) (rel string, abs string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	rel = path.Clean(filepath.ToSlash(raw))
	if rel == "." || rel == ".." || path.IsAbs(rel) || strings.HasPrefix(rel, "../") {
		return "", "", false
	}

	abs = filepath.Join(h.mediaDir, filepath.FromSlash(rel))
	if abs != h.mediaDir && !strings.HasPrefix(abs, h.mediaDir+string(filepath.Separator)) {
		return "", "", false
	}
	return rel, abs, true
}

// writeJSON encodes v as JSON. Encoding errors are logged; there is no way to
// recover mid-response.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
// Messages are generic by design; absolute paths never reach the client.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}
