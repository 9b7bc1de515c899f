package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"media-server/internal/extract"
	"media-server/internal/logging"
	"media-server/internal/mediatypes"
)

var compatibleCodecs = map[string]bool{
	"h264": true,
	"vp8":  true,
	"vp9":  true,
	"av1":  true,
}

var compatibleContainers = map[string]bool{
	"mp4":  true,
	"webm": true,
	"ogg":  true,
}

// Video produces web-playable video representations. Sources already in a
// compatible codec and container pass through unmodified when no resize is
// requested; everything else is re-encoded to H.264/AAC MP4 via ffmpeg.
type Video struct{}

// NeedsTranscode reports whether the probed codec/container combination
// requires re-encoding for browser playback.
func NeedsTranscode(absPath, codec string) bool {
	container := strings.TrimPrefix(mediatypes.Ext(absPath), ".")
	return !compatibleCodecs[codec] || !compatibleContainers[container]
}

// Convert implements Converter.
func (c *Video) Convert(ctx context.Context, absPath string, desc Descriptor) (*Result, error) {
	probe, err := extract.Probe(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	needsResize := false
	if !desc.Unscaled() {
		_, _, needsResize = fitWithin(probe.Width, probe.Height, desc.MaxWidth, desc.MaxHeight)
	}

	if !NeedsTranscode(absPath, probe.Codec) && !needsResize {
		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
		return &Result{Bytes: data, ContentType: mediatypes.MimeOf(mediatypes.Ext(absPath))}, nil
	}

	return c.transcode(ctx, absPath, desc, needsResize)
}

// transcode re-encodes through ffmpeg into a temp file. faststart needs
// seekable output, so encoding to a pipe is not an option here.
func (c *Video) transcode(ctx context.Context, absPath string, desc Descriptor, needsResize bool) (*Result, error) {
	tmp, err := os.CreateTemp("", "transcode-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		logging.Warn("failed to close temp file %s: %v", tmpPath, err)
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove temp file %s: %v", tmpPath, err)
		}
	}()

	args := []string{
		"-y",
		"-i", absPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
	}
	if needsResize {
		args = append(args, "-vf", scaleFilter(desc))
	}
	args = append(args, "-f", "mp4", tmpPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.Debug("Transcoding %s (%s)", filepath.Base(absPath), desc)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailed, ctxErr)
		}
		logging.Error("ffmpeg stderr: %s", stderr.String())
		return nil, fmt.Errorf("%w: ffmpeg: %v", ErrConversionFailed, err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return &Result{Bytes: data, ContentType: "video/mp4"}, nil
}

// scaleFilter builds the ffmpeg scale expression for a bounded resize.
// -2 keeps the free axis aspect-correct and even (required by libx264).
func scaleFilter(desc Descriptor) string {
	if desc.MaxWidth > 0 && desc.MaxHeight > 0 {
		return fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", desc.MaxWidth, desc.MaxHeight)
	}
	if desc.MaxWidth > 0 {
		return fmt.Sprintf("scale='min(%d,iw)':-2", desc.MaxWidth)
	}
	return fmt.Sprintf("scale=-2:'min(%d,ih)'", desc.MaxHeight)
}
