package extract

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"media-server/internal/mediatypes"
)

// ErrUnsupported is returned when no extractor is registered for a file's
// extension.
var ErrUnsupported = errors.New("no extractor for file type")

// Extractor produces type-specific metadata for a file. Implementations must
// be side-effect-free beyond returning their result.
type Extractor interface {
	Extract(ctx context.Context, absPath string, info fs.FileInfo) (map[string]any, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, absPath string, info fs.FileInfo) (map[string]any, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, absPath string, info fs.FileInfo) (map[string]any, error) {
	return f(ctx, absPath, info)
}

// Registry maps file extensions to extractors.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Extractor
}

// NewRegistry returns an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// Register binds an extractor to a set of extensions (lowercase, leading dot).
// Later registrations for the same extension replace earlier ones.
func (r *Registry) Register(exts []string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.byExt[ext] = e
	}
}

// ForPath returns the extractor registered for path's extension.
func (r *Registry) ForPath(path string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byExt[mediatypes.Ext(path)]
	return e, ok
}

// Extract runs the extractor matching path, or returns ErrUnsupported.
func (r *Registry) Extract(ctx context.Context, absPath string, info fs.FileInfo) (map[string]any, error) {
	e, ok := r.ForPath(absPath)
	if !ok {
		return nil, ErrUnsupported
	}
	return e.Extract(ctx, absPath, info)
}

// DefaultRegistry returns a registry with the built-in image and video
// extractors bound to their extension sets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	imageExts := make([]string, 0, len(mediatypes.ImageExtensions))
	for ext := range mediatypes.ImageExtensions {
		imageExts = append(imageExts, ext)
	}
	r.Register(imageExts, ExtractorFunc(ExtractImage))

	videoExts := make([]string, 0, len(mediatypes.VideoExtensions))
	for ext := range mediatypes.VideoExtensions {
		videoExts = append(videoExts, ext)
	}
	r.Register(videoExts, ExtractorFunc(ExtractVideo))

	return r
}
