package index

import "strings"

// Projection is the ordered, de-duplicated set of metadata keys a caller asked
// for. An empty projection means no metadata fields are returned (items carry
// just their path).
type Projection []string

// ParseProjection merges one or more comma-separated field lists into a single
// projection. Requests may repeat the parameter; the first occurrence of a key
// fixes its position and later duplicates are dropped rather than concatenated
// into conflicting output.
func ParseProjection(values []string) Projection {
	var proj Projection
	seen := make(map[string]bool)
	for _, v := range values {
		for field := range strings.SplitSeq(v, ",") {
			field = strings.TrimSpace(field)
			if field == "" || seen[field] {
				continue
			}
			seen[field] = true
			proj = append(proj, field)
		}
	}
	return proj
}

// Contains reports whether key is part of the projection.
func (p Projection) Contains(key string) bool {
	for _, k := range p {
		if k == key {
			return true
		}
	}
	return false
}

// Apply shapes a record's queryable fields down to the projected keys.
// Intrinsic fields (mimeType, size, name, directory, dateCreated,
// dateModified) are addressable alongside the open metadata map; keys the
// record does not have are omitted entirely, never emitted as null.
func (p Projection) Apply(rec *FileRecord) map[string]any {
	out := make(map[string]any, len(p))
	for _, key := range p {
		switch key {
		case "mimeType":
			if rec.MimeType != "" {
				out[key] = rec.MimeType
			}
		case "size":
			out[key] = rec.Size
		case "name":
			out[key] = rec.Name
		case "directory":
			out[key] = rec.Directory
		case "dateCreated":
			if !rec.DateCreated.IsZero() {
				out[key] = rec.DateCreated
			}
		case "dateModified":
			if !rec.DateModified.IsZero() {
				out[key] = rec.DateModified
			}
		default:
			if v, ok := rec.Metadata[key]; ok {
				out[key] = v
			}
		}
	}
	return out
}
