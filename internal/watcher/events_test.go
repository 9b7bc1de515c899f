package watcher

import (
	"testing"
	"time"

	"media-server/internal/index"
)

func TestReduce(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1700000000, 0)
	enriched := &index.FileRecord{
		Path: "a.jpg", Size: 100, DateModified: mtime,
		LastIndexedAt: mtime.Add(time.Second),
	}
	statOnly := &index.FileRecord{
		Path: "a.jpg", Size: 100, DateModified: mtime,
	}

	tests := []struct {
		name  string
		rec   *index.FileRecord
		kind  EventKind
		size  int64
		mtime time.Time
		want  Action
	}{
		{"new file discovered", nil, Discovered, 100, mtime, ActionIndex},
		{"new file changed", nil, Changed, 100, mtime, ActionIndex},
		{"unchanged enriched file", enriched, Discovered, 100, mtime, ActionNone},
		{"size changed", enriched, Changed, 200, mtime, ActionIndex},
		{"mtime changed", enriched, Changed, 100, mtime.Add(time.Minute), ActionIndex},
		{"stale discovery forces reindex", enriched, Discovered, 200, mtime, ActionIndex},
		{"enrichment pending", statOnly, Changed, 100, mtime, ActionEnrich},
		{"removed with record", enriched, Removed, 0, time.Time{}, ActionRemove},
		{"removed without record", nil, Removed, 0, time.Time{}, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Kind: tt.kind, Path: "/media/a.jpg"}
			if got := reduce(tt.rec, ev, tt.size, tt.mtime); got != tt.want {
				t.Errorf("reduce() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Sub-second mtime drift must not count as a change; the index stores
// timestamps at second precision.
func TestReduceIgnoresSubSecondMtime(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1700000000, 0)
	rec := &index.FileRecord{
		Path: "a.jpg", Size: 100, DateModified: mtime,
		LastIndexedAt: mtime,
	}
	ev := Event{Kind: Changed, Path: "/media/a.jpg"}
	if got := reduce(rec, ev, 100, mtime.Add(300*time.Millisecond)); got != ActionNone {
		t.Errorf("reduce() = %v, want ActionNone", got)
	}
}
