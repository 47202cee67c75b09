// ABOUTME: Tests for resource listing, URI-based reads, and scheme enforcement.

package resources

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/crucible-tools/crucible/internal/sandbox"
)

func newTestCatalog(t *testing.T) (*Catalog, *sandbox.Resolver) {
	t.Helper()
	r, err := sandbox.NewResolver(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return NewCatalog(r), r
}

func seed(t *testing.T, r *sandbox.Resolver, rel, text string) {
	t.Helper()
	abs, err := r.Resolve(rel)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListFindsAllRegularFiles(t *testing.T) {
	c, r := newTestCatalog(t)
	seed(t, r, "top.md", "# top")
	seed(t, r, "deep/nested/leaf.txt", "leaf")

	res, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 resources, got %d: %+v", len(res), res)
	}

	byURI := make(map[string]Resource)
	for _, item := range res {
		byURI[item.URI] = item
	}
	md, ok := byURI["file:///top.md"]
	if !ok {
		t.Fatalf("missing top.md resource: %v", byURI)
	}
	if md.Name != "top.md" || md.MimeType == "" {
		t.Errorf("unexpected resource: %+v", md)
	}
	if _, ok := byURI["file:///deep/nested/leaf.txt"]; !ok {
		t.Errorf("missing nested resource: %v", byURI)
	}
}

func TestReadText(t *testing.T) {
	c, r := newTestCatalog(t)
	seed(t, r, "notes/a.txt", "hello")

	contents, err := c.Read("file:///notes/a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if contents.Text != "hello" {
		t.Errorf("text = %q", contents.Text)
	}
	if contents.Blob != "" {
		t.Error("text resource should not carry a blob")
	}
	if contents.Name != "a.txt" {
		t.Errorf("name = %q", contents.Name)
	}
}

func TestReadBinary(t *testing.T) {
	c, r := newTestCatalog(t)
	abs, _ := r.Resolve("img.png")
	if err := os.WriteFile(abs, []byte{0x89, 0x50}, 0o644); err != nil {
		t.Fatal(err)
	}

	contents, err := c.Read("file:///img.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if contents.Blob == "" {
		t.Error("binary resource should carry base64 blob")
	}
	if contents.MimeType != "image/png" {
		t.Errorf("mimeType = %q", contents.MimeType)
	}
}

func TestReadMissing(t *testing.T) {
	c, _ := newTestCatalog(t)

	_, err := c.Read("file:///ghost.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReadRejectsForeignScheme(t *testing.T) {
	c, _ := newTestCatalog(t)

	_, err := c.Read("https://example.com/x")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("err = %v, want ErrUnsupportedScheme", err)
	}
}

func TestReadRejectsTraversalInsideURI(t *testing.T) {
	c, _ := newTestCatalog(t)

	_, err := c.Read("file:///../../etc/passwd")
	if !errors.Is(err, sandbox.ErrViolation) {
		t.Errorf("err = %v, want sandbox.ErrViolation", err)
	}
}

func TestTemplates(t *testing.T) {
	c, _ := newTestCatalog(t)

	tmpl := c.Templates()
	if len(tmpl) != 1 {
		t.Fatalf("expected 1 template, got %d", len(tmpl))
	}
	if tmpl[0].URITemplate != "file:///{relative_path}" {
		t.Errorf("uriTemplate = %q", tmpl[0].URITemplate)
	}
}
