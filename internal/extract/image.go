package extract

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"

	"media-server/internal/logging"
	"media-server/internal/mediatypes"

	// Image format decoders for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/davidbyttow/govips/v2/vips"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// ExtractImage reads raster image metadata: pixel dimensions, read cheaply
// from the header via DecodeConfig where the stdlib can, falling back to a
// vips load for container formats (HEIC/HEIF/AVIF) it cannot.
func ExtractImage(ctx context.Context, absPath string, _ fs.FileInfo) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width, height, err := imageDimensions(absPath)
	if err != nil {
		width, height, err = vipsDimensions(absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read image dimensions: %w", err)
		}
	}

	return map[string]any{
		"width":  width,
		"height": height,
	}, nil
}

// imageDimensions reads dimensions from the image header without decoding
// pixel data.
func imageDimensions(absPath string) (int, int, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logging.Warn("failed to close image file %s: %v", absPath, closeErr)
		}
	}()

	config, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	logging.Debug("Decoded image header: %s %dx%d", format, config.Width, config.Height)
	return config.Width, config.Height, nil
}

// vipsDimensions loads the image with libvips to obtain dimensions for
// formats the stdlib decoders do not handle.
func vipsDimensions(absPath string) (int, int, error) {
	ref, err := vips.LoadImageFromFile(absPath, vips.NewImportParams())
	if err != nil {
		return 0, 0, fmt.Errorf("vips failed to load %s: %w", mediatypes.Ext(absPath), err)
	}
	defer ref.Close()
	return ref.Width(), ref.Height(), nil
}
