package convert

import (
	"context"
	"fmt"
)

// HEIF converts HEIC/HEIF/AVIF containers, which browsers cannot decode.
// These always require conversion: an unscaled request yields a
// converted-but-unscaled WebP, a dimensioned request an aspect-preserving
// resize. Decoding goes through libvips (libheif underneath).
type HEIF struct{}

// Convert implements Converter.
func (c *HEIF) Convert(ctx context.Context, absPath string, desc Descriptor) (*Result, error) {
	format := desc.Format
	if format == "" {
		// WebP preserves more of the source than JPEG (alpha, wider gamut)
		// and every browser that can hit this server decodes it.
		format = "webp"
	}

	result, err := vipsTransform(ctx, absPath, desc, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return result, nil
}
