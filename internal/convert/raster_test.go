package convert

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write png: %v", err)
	}
	return path
}

// Unscaled web-safe sources pass through byte-identical.
func TestRasterOriginalPassthrough(t *testing.T) {
	t.Parallel()

	path := writePNG(t, t.TempDir(), "sample.png", 1, 1)
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	c := &Raster{}
	result, err := c.Convert(context.Background(), path, Descriptor{Kind: KindOriginal})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !bytes.Equal(result.Bytes, want) {
		t.Error("original representation is not byte-identical to the source")
	}
	if result.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", result.ContentType)
	}
}

func TestRasterResize(t *testing.T) {
	t.Parallel()

	path := writePNG(t, t.TempDir(), "big.png", 200, 100)

	c := &Raster{}
	result, err := c.Convert(context.Background(), path, Descriptor{Kind: KindResize, MaxWidth: 100})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q, want image/jpeg", result.ContentType)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Bytes))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("resized to %dx%d, want 100x50", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestRasterResizeDeterministic(t *testing.T) {
	t.Parallel()

	path := writePNG(t, t.TempDir(), "img.png", 64, 64)
	desc := Descriptor{Kind: KindResize, MaxHeight: 32}

	c := &Raster{}
	first, err := c.Convert(context.Background(), path, desc)
	if err != nil {
		t.Fatalf("first Convert failed: %v", err)
	}
	second, err := c.Convert(context.Background(), path, desc)
	if err != nil {
		t.Fatalf("second Convert failed: %v", err)
	}
	if !bytes.Equal(first.Bytes, second.Bytes) {
		t.Error("identical requests must produce identical bytes")
	}
}

func TestRasterMissingSource(t *testing.T) {
	t.Parallel()

	c := &Raster{}
	_, err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "absent.png"), Descriptor{Kind: KindOriginal})
	if err == nil {
		t.Error("Convert on missing source should fail")
	}
}
