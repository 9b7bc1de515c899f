package mediatypes

import "testing"

func TestClassOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext      string
		expected FileClass
	}{
		{".jpg", ClassImage},
		{".jpeg", ClassImage},
		{".png", ClassImage},
		{".heic", ClassImage},
		{".avif", ClassImage},
		{".mp4", ClassVideo},
		{".mkv", ClassVideo},
		{".webm", ClassVideo},
		{".txt", ClassOther},
		{".exe", ClassOther},
		{"", ClassOther},
	}

	for _, tt := range tests {
		if got := ClassOf(tt.ext); got != tt.expected {
			t.Errorf("ClassOf(%q) = %v, want %v", tt.ext, got, tt.expected)
		}
	}
}

func TestMimeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext      string
		expected string
	}{
		{".jpg", "image/jpeg"},
		{".png", "image/png"},
		{".heic", "image/heic"},
		{".mp4", "video/mp4"},
		{".mkv", "video/x-matroska"},
		{".unknown", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := MimeOf(tt.ext); got != tt.expected {
			t.Errorf("MimeOf(%q) = %q, want %q", tt.ext, got, tt.expected)
		}
	}
}

func TestMimeClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mime     string
		expected string
	}{
		{"image/png", "image"},
		{"video/mp4", "video"},
		{"application/octet-stream", "application"},
		{"weird", "weird"},
	}

	for _, tt := range tests {
		if got := MimeClass(tt.mime); got != tt.expected {
			t.Errorf("MimeClass(%q) = %q, want %q", tt.mime, got, tt.expected)
		}
	}
}

func TestExt(t *testing.T) {
	t.Parallel()

	if got := Ext("photos/Vacation/IMG_0001.JPG"); got != ".jpg" {
		t.Errorf("Ext() = %q, want .jpg", got)
	}
	if got := Ext("noext"); got != "" {
		t.Errorf("Ext() = %q, want empty", got)
	}
}

func TestWebSafeSubsetOfImages(t *testing.T) {
	t.Parallel()

	for ext := range WebSafeImageExtensions {
		if !ImageExtensions[ext] {
			t.Errorf("web-safe extension %q is not a recognized image extension", ext)
		}
	}
	if WebSafeImageExtensions[".heic"] {
		t.Error("heic must not be web-safe; it always requires conversion")
	}
}
