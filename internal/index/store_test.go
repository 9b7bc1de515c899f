package index

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return s
}

func TestGetAbsentPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nowhere.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	rec := &FileRecord{
		Path:         "photos/cat.jpg",
		Directory:    "photos",
		Name:         "cat.jpg",
		Size:         1234,
		MimeType:     "image/jpeg",
		DateCreated:  now,
		DateModified: now,
	}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "photos/cat.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Size != 1234 || got.MimeType != "image/jpeg" || got.Name != "cat.jpg" {
		t.Errorf("Get returned %+v", got)
	}
	if !got.DateModified.Equal(now) {
		t.Errorf("DateModified = %v, want %v", got.DateModified, now)
	}
	if got.Metadata != nil {
		t.Errorf("fresh record should have no metadata, got %v", got.Metadata)
	}
}

// Get after Upsert must reflect the union of previously stored metadata and
// newly supplied fields.
func TestUpsertMergesMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first := &FileRecord{
		Path:      "a.jpg",
		Name:      "a.jpg",
		Size:      10,
		Metadata:  map[string]any{"width": 800, "height": 600},
		MimeType:  "image/jpeg",
		Directory: "",
	}
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	second := &FileRecord{
		Path:     "a.jpg",
		Name:     "a.jpg",
		Size:     20,
		Metadata: map[string]any{"cameraMake": "Canon", "width": 1024},
	}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "a.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Scalars are last-write-wins, metadata keys union with later values
	// replacing earlier ones per key.
	if got.Size != 20 {
		t.Errorf("Size = %d, want 20", got.Size)
	}
	if got.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want preserved image/jpeg", got.MimeType)
	}
	if got.Metadata["height"] != float64(600) {
		t.Errorf("metadata height = %v, want 600 (preserved)", got.Metadata["height"])
	}
	if got.Metadata["width"] != float64(1024) {
		t.Errorf("metadata width = %v, want 1024 (overwritten)", got.Metadata["width"])
	}
	if got.Metadata["cameraMake"] != "Canon" {
		t.Errorf("metadata cameraMake = %v, want Canon (added)", got.Metadata["cameraMake"])
	}
}

func TestMergeMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	rec := &FileRecord{Path: "clip.mp4", Name: "clip.mp4", Size: 9000, MimeType: "video/mp4"}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	stamp := time.Now().Truncate(time.Second)
	if err := s.MergeMetadata(ctx, "clip.mp4", map[string]any{"duration": 12.5, "codec": "hevc"}, stamp); err != nil {
		t.Fatalf("MergeMetadata failed: %v", err)
	}

	got, err := s.Get(ctx, "clip.mp4")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Size != 9000 {
		t.Errorf("MergeMetadata must not touch size, got %d", got.Size)
	}
	if got.Metadata["codec"] != "hevc" {
		t.Errorf("metadata codec = %v, want hevc", got.Metadata["codec"])
	}
	if !got.LastIndexedAt.Equal(stamp) {
		t.Errorf("LastIndexedAt = %v, want %v", got.LastIndexedAt, stamp)
	}
}

func TestResetEnrichment(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	rec := &FileRecord{Path: "b.jpg", Name: "b.jpg", Size: 42, MimeType: "image/jpeg"}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.MergeMetadata(ctx, "b.jpg", map[string]any{"width": 800}, time.Now()); err != nil {
		t.Fatalf("MergeMetadata failed: %v", err)
	}

	if err := s.ResetEnrichment(ctx, "b.jpg"); err != nil {
		t.Fatalf("ResetEnrichment failed: %v", err)
	}

	got, err := s.Get(ctx, "b.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Metadata != nil {
		t.Errorf("metadata not cleared: %v", got.Metadata)
	}
	if !got.LastIndexedAt.IsZero() {
		t.Errorf("LastIndexedAt = %v, want zero", got.LastIndexedAt)
	}
	if got.Size != 42 || got.MimeType != "image/jpeg" {
		t.Errorf("stat fields must survive, got %+v", got)
	}

	// The cleared stamp puts the path back on the retry list.
	paths, err := s.UnenrichedPaths(ctx)
	if err != nil {
		t.Fatalf("UnenrichedPaths failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "b.jpg" {
		t.Errorf("UnenrichedPaths = %v, want [b.jpg]", paths)
	}
}

func TestMergeMetadataAbsentPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.MergeMetadata(context.Background(), "gone.jpg", map[string]any{"width": 1}, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("MergeMetadata(absent) error = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, &FileRecord{Path: "x.png", Name: "x.png"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Remove(ctx, "x.png"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := s.Get(ctx, "x.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove error = %v, want ErrNotFound", err)
	}

	// Removing again is not an error.
	if err := s.Remove(ctx, "x.png"); err != nil {
		t.Errorf("second Remove failed: %v", err)
	}
}

func TestConcurrentUpsertsSamePath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &FileRecord{
				Path:     "hot.jpg",
				Name:     "hot.jpg",
				Size:     int64(n),
				Metadata: map[string]any{keyFor(n): n},
			}
			if err := s.Upsert(ctx, rec); err != nil {
				t.Errorf("concurrent Upsert failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "hot.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// Every writer's metadata key must survive (union), and exactly one
	// record must exist so the listing total stays correct.
	if len(got.Metadata) != writers {
		t.Errorf("metadata has %d keys, want %d", len(got.Metadata), writers)
	}
	total, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Count = %d, want 1", total)
	}
}

func keyFor(n int) string {
	return string(rune('a'+n%26)) + "key"
}
