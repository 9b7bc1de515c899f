package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"media-server/internal/convert"
	"media-server/internal/index"
	"media-server/internal/logging"
	"media-server/internal/repcache"
)

const (
	representationOriginal = "original"
	representationResize   = "resize"
	representationMetadata = "metadata"
)

// GetFile handles GET /api/file. Parameters: path (required), representation
// (original|resize|metadata, default original), maxWidth/maxHeight for resize,
// format for an explicit target format, and metadata projection lists for the
// metadata representation.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	raw := query.Get("path")
	if raw == "" {
		writeJSONError(w, "path parameter is required", http.StatusBadRequest)
		return
	}
	rel, abs, ok := h.resolvePath(raw)
	if !ok {
		writeJSONError(w, "invalid path", http.StatusForbidden)
		return
	}

	representation := query.Get("representation")
	if representation == "" {
		representation = representationOriginal
	}

	switch representation {
	case representationMetadata:
		h.serveMetadata(w, r, rel, query["metadata"])
	case representationOriginal, representationResize:
		desc, err := parseDescriptor(representation, query.Get("maxWidth"), query.Get("maxHeight"), query.Get("format"))
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.serveRepresentation(w, r, rel, abs, desc)
	default:
		writeJSONError(w, "unknown representation", http.StatusBadRequest)
	}
}

// serveMetadata answers the metadata representation: the indexed record,
// optionally narrowed by a projection.
func (h *Handlers) serveMetadata(w http.ResponseWriter, r *http.Request, rel string, metadataParams []string) {
	rec, err := h.store.Get(r.Context(), rel)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			writeJSONError(w, "file not found", http.StatusNotFound)
			return
		}
		logging.Error("GetFile metadata lookup failed: %v", err)
		writeJSONError(w, "failed to load metadata", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if projection := index.ParseProjection(metadataParams); len(projection) > 0 {
		writeJSON(w, index.ListItem{Path: rec.Path, Metadata: projection.Apply(rec)})
		return
	}
	writeJSON(w, rec)
}

func (h *Handlers) serveRepresentation(w http.ResponseWriter, r *http.Request, rel, abs string, desc convert.Descriptor) {
	art, err := h.cache.Resolve(r.Context(), abs, desc)
	if err != nil {
		switch {
		case errors.Is(err, repcache.ErrNotFound):
			writeJSONError(w, "file not found", http.StatusNotFound)
		case errors.Is(err, repcache.ErrUnsupportedType):
			writeJSONError(w, "unsupported media type", http.StatusUnsupportedMediaType)
		case errors.Is(err, context.DeadlineExceeded):
			logging.Warn("representation timed out for %s (%s)", rel, desc)
			writeJSONError(w, "representation timed out", http.StatusGatewayTimeout)
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			logging.Error("representation failed for %s (%s): %v", rel, desc, err)
			writeJSONError(w, "failed to produce representation", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	// ServeContent gives us range support, which video playback needs.
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(art.Bytes))
}

// parseDescriptor builds the cache descriptor from query parameters. A resize
// with no dimension bound is the original representation; normalizing here
// keeps the two from producing duplicate cache artifacts.
func parseDescriptor(representation, maxWidth, maxHeight, format string) (convert.Descriptor, error) {
	desc := convert.Descriptor{Kind: convert.KindOriginal, Format: format}
	if representation != representationResize {
		return desc, nil
	}

	if maxWidth != "" {
		n, err := strconv.Atoi(maxWidth)
		if err != nil || n < 0 {
			return desc, errors.New("maxWidth must be a non-negative integer")
		}
		desc.MaxWidth = n
	}
	if maxHeight != "" {
		n, err := strconv.Atoi(maxHeight)
		if err != nil || n < 0 {
			return desc, errors.New("maxHeight must be a non-negative integer")
		}
		desc.MaxHeight = n
	}
	if desc.MaxWidth > 0 || desc.MaxHeight > 0 {
		desc.Kind = convert.KindResize
	}
	return desc, nil
}
