package index

import "time"

// FileRecord is one indexed file. Path is the unique key, always relative to
// the media root with POSIX separators. Metadata is an open, partial map of
// type-specific fields (width, height, duration, codec, captureDate, ...);
// not every field is populated for every file.
type FileRecord struct {
	Path          string         `json:"path"`
	Directory     string         `json:"directory"`
	Name          string         `json:"name"`
	Size          int64          `json:"size"`
	MimeType      string         `json:"mimeType,omitempty"`
	DateCreated   time.Time      `json:"dateCreated,omitzero"`
	DateModified  time.Time      `json:"dateModified,omitzero"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	LastIndexedAt time.Time      `json:"lastIndexedAt,omitzero"`
}

// ListItem is the projected listing shape: the path plus only the metadata
// fields the caller asked for.
type ListItem struct {
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata"`
}

// ListResult is a single page of projected records plus the total match count.
type ListResult struct {
	Items []ListItem `json:"items"`
	Total int        `json:"total"`
}

// ListOptions selects and shapes a listing query.
type ListOptions struct {
	// Directory filters to records in this directory or below. Empty matches all.
	Directory string
	// MimeClass filters by the MIME major type ("image", "video"). Empty matches all.
	MimeClass string
	// Projection is the set of metadata keys to include in each item.
	Projection Projection
	Page       int
	PageSize   int
}
