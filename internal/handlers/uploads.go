package handlers

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

// ServeUpload handles GET /uploads/{path}: raw source bytes straight off
// disk. The same traversal guard applies as everywhere else; records never
// reference anything outside the media root and neither may this.
func (h *Handlers) ServeUpload(w http.ResponseWriter, r *http.Request) {
	_, abs, ok := h.resolvePath(mux.Vars(r)["path"])
	if !ok {
		writeJSONError(w, "invalid path", http.StatusForbidden)
		return
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, abs)
}
