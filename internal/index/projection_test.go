package index

import (
	"reflect"
	"testing"
	"time"
)

func TestParseProjection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		values   []string
		expected Projection
	}{
		{
			name:     "single list",
			values:   []string{"mimeType,width,height"},
			expected: Projection{"mimeType", "width", "height"},
		},
		{
			name:     "repeated parameters merge",
			values:   []string{"mimeType", "width,height"},
			expected: Projection{"mimeType", "width", "height"},
		},
		{
			name:     "duplicates de-duplicated, first position wins",
			values:   []string{"width,mimeType", "mimeType,duration"},
			expected: Projection{"width", "mimeType", "duration"},
		},
		{
			name:     "whitespace and empty fields dropped",
			values:   []string{" width , ,height"},
			expected: Projection{"width", "height"},
		},
		{
			name:     "empty input",
			values:   nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProjection(tt.values)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseProjection(%v) = %v, want %v", tt.values, got, tt.expected)
			}
		})
	}
}

func TestProjectionApply(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rec := &FileRecord{
		Path:         "p.jpg",
		Directory:    "d",
		Name:         "p.jpg",
		Size:         42,
		MimeType:     "image/jpeg",
		DateModified: now,
		Metadata:     map[string]any{"width": 800},
	}

	out := Projection{"mimeType", "size", "width", "duration", "dateModified"}.Apply(rec)

	if out["mimeType"] != "image/jpeg" || out["size"] != int64(42) || out["width"] != 800 {
		t.Errorf("Apply returned %v", out)
	}
	if _, ok := out["duration"]; ok {
		t.Error("absent metadata key must be omitted, not defaulted")
	}
	if out["dateModified"] != now {
		t.Errorf("dateModified = %v, want %v", out["dateModified"], now)
	}
}

func TestProjectionApplyOmitsAbsentIntrinsics(t *testing.T) {
	t.Parallel()

	rec := &FileRecord{Path: "bare.bin", Name: "bare.bin"}
	out := Projection{"mimeType", "dateCreated"}.Apply(rec)

	if len(out) != 0 {
		t.Errorf("unset intrinsic fields must be omitted, got %v", out)
	}
}
