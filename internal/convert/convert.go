package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"media-server/internal/mediatypes"
)

// Kind selects the representation family.
type Kind string

const (
	// KindOriginal is the source's original-resolution representation.
	KindOriginal Kind = "original"
	// KindResize is an aspect-preserving resized representation.
	KindResize Kind = "resize"
)

// Descriptor identifies a derived representation of a source file. Together
// with the source path it keys the representation cache, so width-constrained
// and height-constrained requests must stay distinguishable.
type Descriptor struct {
	Kind      Kind
	MaxWidth  int
	MaxHeight int
	// Format is the requested target format ("jpeg", "webp"); empty lets the
	// converter pick its default for the source type.
	Format string
}

// String renders the descriptor as a filesystem-safe cache key component.
func (d Descriptor) String() string {
	format := d.Format
	if format == "" {
		format = "auto"
	}
	return fmt.Sprintf("%s-w%d-h%d-%s", d.Kind, d.MaxWidth, d.MaxHeight, format)
}

// Unscaled reports whether the descriptor requests original resolution.
func (d Descriptor) Unscaled() bool {
	return d.MaxWidth == 0 && d.MaxHeight == 0
}

// Result is the outcome of a conversion.
type Result struct {
	Bytes       []byte
	ContentType string
}

// ErrConversionFailed marks converter/transcode failures. Callers surface it
// as a server error; the cache key is not poisoned and a retry is allowed.
var ErrConversionFailed = errors.New("conversion failed")

// Converter produces a representation of a source file.
type Converter interface {
	Convert(ctx context.Context, absPath string, desc Descriptor) (*Result, error)
}

// Registry maps source file extensions to converters.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Converter
}

// NewRegistry returns an empty converter registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Converter)}
}

// Register binds a converter to a set of extensions (lowercase, leading dot).
func (r *Registry) Register(exts []string, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.byExt[ext] = c
	}
}

// ForPath returns the converter registered for path's extension.
func (r *Registry) ForPath(path string) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byExt[mediatypes.Ext(path)]
	return c, ok
}

// DefaultRegistry wires the built-in converters: raster images through
// stdlib/vips, HEIF-family containers through vips, video through ffmpeg.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register([]string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif"}, &Raster{})
	r.Register([]string{".heic", ".heif", ".avif"}, &HEIF{})

	videoExts := make([]string, 0, len(mediatypes.VideoExtensions))
	for ext := range mediatypes.VideoExtensions {
		videoExts = append(videoExts, ext)
	}
	r.Register(videoExts, &Video{})

	return r
}
