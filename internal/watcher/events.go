package watcher

import (
	"time"

	"media-server/internal/index"
)

// EventKind tags a filesystem observation.
type EventKind string

const (
	// Discovered means a path newly appeared (create, move-in, or scan).
	Discovered EventKind = "discovered"
	// Changed means an existing path's contents were modified.
	Changed EventKind = "changed"
	// Removed means a path was deleted or moved away.
	Removed EventKind = "removed"
)

// Event is a stabilized filesystem observation for a single path.
type Event struct {
	Kind EventKind
	// Path is absolute.
	Path string
}

// Action is what the pipeline must do for an event, decided by reduce.
type Action int

const (
	// ActionNone means the record is current; nothing to do.
	ActionNone Action = iota
	// ActionIndex means write stat fields and run metadata extraction.
	ActionIndex
	// ActionEnrich means stat fields are current but metadata extraction
	// has not succeeded yet; run it again.
	ActionEnrich
	// ActionRemove means delete the record.
	ActionRemove
)

// reduce maps (current record, event, observed stat) to an action. rec is nil
// when the path has no record yet. Pure: all filesystem and store I/O happens
// in the caller.
//
// A size or mtime mismatch forces re-extraction even for Discovered events,
// so a file replaced while the watcher was down is picked up by the next scan.
func reduce(rec *index.FileRecord, ev Event, size int64, mtime time.Time) Action {
	if ev.Kind == Removed {
		if rec == nil {
			return ActionNone
		}
		return ActionRemove
	}

	if rec == nil {
		return ActionIndex
	}
	// The index stores timestamps at second precision.
	if rec.Size != size || rec.DateModified.Unix() != mtime.Unix() {
		return ActionIndex
	}
	if rec.LastIndexedAt.IsZero() {
		return ActionEnrich
	}
	return ActionNone
}
