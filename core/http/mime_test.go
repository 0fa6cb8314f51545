package http

import "testing"

// TestMimeTypeForFileName tests the extension table and its fallback.
func TestMimeTypeForFileName(t *testing.T) {
	tests := []struct {
		fileName string
		want     string
	}{
		{"style.css", "text/css"},
		{"index.htm", "text/html"},
		{"photo.jpg", "image/jpeg"},
		{"app.js", "application/javascript"},
		{"logo.png", "image/png"},
		{"readme.txt", "text/plain"},
		{"archive.tar.gz", MimeTypeFallback},
		{"binary", MimeTypeFallback},
		{"trailing.", MimeTypeFallback},
		{"min.v2.js", "application/javascript"},
	}

	for _, tt := range tests {
		if got := MimeTypeForFileName(tt.fileName); got != tt.want {
			t.Errorf("MimeTypeForFileName(%q): got %q, want %q", tt.fileName, got, tt.want)
		}
	}
}
