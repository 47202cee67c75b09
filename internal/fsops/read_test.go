// ABOUTME: Tests for MIME guessing, allow-list text detection, and permissive reads.

package fsops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsText(t *testing.T) {
	cases := []struct {
		mime string
		path string
		want bool
	}{
		{"text/plain", "a.txt", true},
		{"text/html", "a.html", true},
		{"", "config.toml", true},            // allow-list beats missing MIME
		{"application/json", "a.json", true}, // allow-list beats non-text MIME
		{"", "script.PY", true},
		{"image/png", "a.png", false},
		{"", "a.bin", false},
	}

	for _, c := range cases {
		if got := IsText(c.mime, c.path); got != c.want {
			t.Errorf("IsText(%q, %q) = %v, want %v", c.mime, c.path, got, c.want)
		}
	}
}

func TestReadTextWithInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.txt")
	if err := os.WriteFile(path, []byte{'h', 'i', 0xff, '!'}, 0o644); err != nil {
		t.Fatal(err)
	}

	fd, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !fd.IsText {
		t.Fatal("expected text classification for .txt")
	}
	if !strings.Contains(fd.Text, "�") {
		t.Errorf("invalid byte should be replaced, got %q", fd.Text)
	}
	if !strings.HasPrefix(fd.Text, "hi") || !strings.HasSuffix(fd.Text, "!") {
		t.Errorf("valid bytes should survive, got %q", fd.Text)
	}
}

func TestReadBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	data := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fd, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if fd.IsText {
		t.Fatal("png should not classify as text")
	}
	if fd.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", fd.MimeType)
	}
	if string(fd.Blob) != string(data) {
		t.Error("blob bytes altered")
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
