// Package convert implements representation converters: functions that turn a
// source media file into derived bytes (resized raster, format-converted
// image, re-encoded video) for a requested descriptor.
//
// All converters sit behind the same Converter interface whether they run
// in-process (libvips, imaging) or shell out (ffmpeg/ffprobe), so the
// representation cache's single-flight and persistence logic never cares how
// bytes are produced. Converters are side-effect-free beyond their result.
package convert
