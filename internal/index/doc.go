// Package index implements the persisted index of media file records.
//
// Records are keyed by path relative to the media root (POSIX separators) and
// enriched progressively: discovery adds path and name, a stat pass adds size,
// timestamps and MIME type, and extraction adds type-specific metadata. Absent
// fields are omitted from query output, never defaulted.
//
// Storage is SQLite (WAL mode). Metadata is stored as a JSON object column and
// merged on upsert with json_patch, so concurrent upserts union metadata keys
// while scalar fields are last-write-wins, each record updated atomically in a
// single statement.
package index
