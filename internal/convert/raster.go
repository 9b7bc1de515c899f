package convert

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"

	"media-server/internal/logging"
	"media-server/internal/mediatypes"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP decode for the imaging fallback
	_ "golang.org/x/image/tiff" // TIFF decode for the imaging fallback
	_ "golang.org/x/image/webp" // WebP decode for the imaging fallback
)

// jpegQuality is used for every lossy re-encode. 85 keeps artifacts visually
// clean at roughly half the size of quality 95.
const jpegQuality = 85

// Raster converts common raster formats. Unscaled requests for formats
// browsers already decode pass the original bytes through untouched;
// everything else goes through a vips resize/re-encode with an
// imaging-library fallback when vips cannot load the source.
type Raster struct{}

// Convert implements Converter.
func (c *Raster) Convert(ctx context.Context, absPath string, desc Descriptor) (*Result, error) {
	ext := mediatypes.Ext(absPath)

	if desc.Unscaled() && desc.Format == "" && mediatypes.WebSafeImageExtensions[ext] {
		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
		return &Result{Bytes: data, ContentType: mediatypes.MimeOf(ext)}, nil
	}

	format := desc.Format
	if format == "" {
		format = "jpeg"
	}

	result, err := vipsTransform(ctx, absPath, desc, format)
	if err == nil {
		return result, nil
	}
	logging.Debug("vips transform failed for %s: %v, trying imaging fallback", absPath, err)

	return imagingTransform(absPath, desc)
}

// fitWithin computes aspect-preserving target dimensions for a bounding box.
// A zero constraint means unbounded on that axis. Returns ok=false when the
// source already fits (no resize needed).
func fitWithin(width, height, maxWidth, maxHeight int) (int, int, bool) {
	if width <= 0 || height <= 0 {
		return width, height, false
	}

	ratio := 1.0
	if maxWidth > 0 && width > maxWidth {
		ratio = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 && height > maxHeight {
		if r := float64(maxHeight) / float64(height); r < ratio {
			ratio = r
		}
	}
	if ratio >= 1.0 {
		return width, height, false
	}
	return int(float64(width) * ratio), int(float64(height) * ratio), true
}

// vipsTransform loads, optionally resizes, and re-encodes with libvips.
// vips shrinks during decode, which keeps memory bounded on large sources.
func vipsTransform(ctx context.Context, absPath string, desc Descriptor, format string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := vips.LoadImageFromFile(absPath, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	if targetW, targetH, resize := fitWithin(ref.Width(), ref.Height(), desc.MaxWidth, desc.MaxHeight); resize {
		if err := ref.Thumbnail(targetW, targetH, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips resize: %w", err)
		}
	}

	switch format {
	case "webp":
		data, _, err := ref.ExportWebp(&vips.WebpExportParams{Quality: jpegQuality})
		if err != nil {
			return nil, fmt.Errorf("vips webp export: %w", err)
		}
		return &Result{Bytes: data, ContentType: "image/webp"}, nil
	default:
		data, _, err := ref.ExportJpeg(&vips.JpegExportParams{Quality: jpegQuality, OptimizeCoding: true})
		if err != nil {
			return nil, fmt.Errorf("vips jpeg export: %w", err)
		}
		return &Result{Bytes: data, ContentType: "image/jpeg"}, nil
	}
}

// imagingTransform is the pure-Go fallback: stdlib/x-image decoders plus
// Lanczos resampling, always encoding JPEG.
func imagingTransform(absPath string, desc Descriptor) (*Result, error) {
	img, err := imaging.Open(absPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	bounds := img.Bounds()
	if targetW, targetH, resize := fitWithin(bounds.Dx(), bounds.Dy(), desc.MaxWidth, desc.MaxHeight); resize {
		img = imaging.Resize(img, targetW, targetH, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %v", ErrConversionFailed, err)
	}
	return &Result{Bytes: buf.Bytes(), ContentType: "image/jpeg"}, nil
}
