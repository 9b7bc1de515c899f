package handlers

import (
	"net/http"
	"strconv"
	"time"

	"media-server/internal/index"
	"media-server/internal/logging"
)

// ListFiles handles GET /api/files. Supported parameters: directory (prefix
// filter), class (mime class filter), page, pageSize, and one or more
// metadata parameters, each a comma-separated projection field list.
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()

	opts := index.ListOptions{
		MimeClass:  query.Get("class"),
		Projection: index.ParseProjection(query["metadata"]),
		Page:       1,
		PageSize:   0,
	}

	if dir := query.Get("directory"); dir != "" {
		rel, _, ok := h.resolvePath(dir)
		if !ok {
			writeJSONError(w, "invalid directory", http.StatusForbidden)
			return
		}
		opts.Directory = rel
	}
	if page, err := strconv.Atoi(query.Get("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if pageSize, err := strconv.Atoi(query.Get("pageSize")); err == nil && pageSize > 0 {
		opts.PageSize = pageSize
	}

	result, err := h.store.List(r.Context(), opts)
	if err != nil {
		logging.Error("ListFiles query failed: %v", err)
		writeJSONError(w, "failed to list files", http.StatusInternalServerError)
		return
	}

	logging.Debug("ListFiles returned %d/%d items in %v", len(result.Items), result.Total, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}
