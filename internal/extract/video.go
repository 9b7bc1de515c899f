package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
)

// ffprobeOutput mirrors the subset of `ffprobe -print_format json` we consume.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ExtractVideo probes a video file with ffprobe and returns duration, the
// video stream's dimensions and its codec name.
func ExtractVideo(ctx context.Context, absPath string, _ fs.FileInfo) (map[string]any, error) {
	probe, err := Probe(ctx, absPath)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if probe.Duration > 0 {
		meta["duration"] = probe.Duration
	}
	if probe.Codec != "" {
		meta["codec"] = probe.Codec
	}
	if probe.Width > 0 {
		meta["width"] = probe.Width
		meta["height"] = probe.Height
	}
	return meta, nil
}

// ProbeResult is the parsed ffprobe output for a video file.
type ProbeResult struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
}

// Probe runs ffprobe against absPath. The context bounds the subprocess.
func Probe(ctx context.Context, absPath string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		absPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	if out.Format.Duration != "" {
		result.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	for _, stream := range out.Streams {
		if stream.CodecType == "video" {
			result.Codec = stream.CodecName
			result.Width = stream.Width
			result.Height = stream.Height
			break
		}
	}
	return result, nil
}
