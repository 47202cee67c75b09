// ABOUTME: File content classification and permissive reading for sandboxed files.
// ABOUTME: Text detection uses MIME guessing plus a fixed extension allow-list.

package fsops

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// textExtensions are always treated as text regardless of MIME guessing.
var textExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".py":   true,
	".json": true,
	".csv":  true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".ini":  true,
	".log":  true,
}

// MimeType guesses a MIME type from the path's extension. Returns "" when
// the extension is unknown. Charset parameters are stripped.
func MimeType(path string) string {
	m := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if m == "" {
		return ""
	}
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}

// IsText reports whether a file should be decoded as text, either because
// its MIME type says so or because its extension is on the allow-list.
func IsText(mimeType, path string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}

// FileData is the classified content of one file. Exactly one of Text or
// Blob is meaningful, selected by IsText.
type FileData struct {
	MimeType string
	IsText   bool
	Text     string
	Blob     []byte
}

// Read loads and classifies the file at path. Text files are decoded
// permissively: invalid UTF-8 sequences are replaced, never fatal.
func Read(path string) (*FileData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	m := MimeType(path)
	if IsText(m, path) {
		if m == "" {
			m = "text/plain"
		}
		return &FileData{
			MimeType: m,
			IsText:   true,
			Text:     strings.ToValidUTF8(string(raw), "�"),
		}, nil
	}

	if m == "" {
		m = "application/octet-stream"
	}
	return &FileData{MimeType: m, Blob: raw}, nil
}
