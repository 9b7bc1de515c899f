package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileClass is the broad media classification of a file, derived from its
// extension. It selects which metadata extractor and converter apply.
type FileClass string

const (
	// ClassImage represents a raster or container image file.
	ClassImage FileClass = "image"
	// ClassVideo represents a video file.
	ClassVideo FileClass = "video"
	// ClassOther represents an unknown or unsupported file type.
	ClassOther FileClass = "other"
)

// ImageExtensions maps file extensions to whether they are recognized image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// VideoExtensions maps file extensions to whether they are recognized video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// WebSafeImageExtensions are raster formats browsers decode natively; a request
// for the original representation of one of these can serve the source bytes
// without conversion.
var WebSafeImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// Ext returns the lowercased extension of path, including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// ClassOf returns the FileClass for a given file extension.
// The extension should be lowercase and include the leading dot (e.g. ".jpg").
func ClassOf(ext string) FileClass {
	if ImageExtensions[ext] {
		return ClassImage
	}
	if VideoExtensions[ext] {
		return ClassVideo
	}
	return ClassOther
}

// MimeOf returns the MIME type for a given file extension, or
// "application/octet-stream" if the extension is not recognized.
func MimeOf(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// MimeClass returns the part of a MIME type before the slash ("image" for
// "image/png"). Used for mime-class filtering in listings.
func MimeClass(mime string) string {
	if idx := strings.IndexByte(mime, '/'); idx != -1 {
		return mime[:idx]
	}
	return mime
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return ClassOf(ext) != ClassOther
}
