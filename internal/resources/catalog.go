// ABOUTME: Read-only resource catalog over the sandbox: list and read files by URI.
// ABOUTME: URIs are file:///<sandbox-relative-path>; the path is always re-resolved.

package resources

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/crucible-tools/crucible/internal/fsops"
	"github.com/crucible-tools/crucible/internal/sandbox"
)

// Scheme is the only URI scheme the catalog accepts.
const Scheme = "file://"

// ErrNotFound indicates the URI's target does not exist or is not a regular file.
var ErrNotFound = errors.New("resource not found")

// ErrUnsupportedScheme indicates a URI outside the file:// scheme.
var ErrUnsupportedScheme = errors.New("only file:// URIs are supported")

// FileURI builds the canonical URI for a sandbox-relative path.
func FileURI(rel string) string {
	return Scheme + "/" + strings.TrimPrefix(filepath.ToSlash(rel), "/")
}

// Resource describes one listable file under the sandbox root.
type Resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	MimeType string `json:"mimeType"`
}

// Contents is the readable payload of one resource. Text carries decoded
// text; Blob carries base64-encoded bytes. Exactly one is set.
type Contents struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// Template is a static URI template advertised for discoverability.
type Template struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// Catalog exposes sandboxed files as URI-addressable resources.
type Catalog struct {
	paths *sandbox.Resolver
}

// NewCatalog creates a catalog over the given resolver.
func NewCatalog(paths *sandbox.Resolver) *Catalog {
	return &Catalog{paths: paths}
}

// List enumerates every regular file under the sandbox root. Entries whose
// metadata cannot be read are skipped.
func (c *Catalog) List() ([]Resource, error) {
	var out []Resource
	err := filepath.WalkDir(c.paths.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		m := fsops.MimeType(path)
		if m == "" {
			m = "application/octet-stream"
		}
		out = append(out, Resource{
			URI:      FileURI(c.paths.Rel(path)),
			Name:     d.Name(),
			Title:    d.Name(),
			MimeType: m,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking sandbox root: %w", err)
	}
	return out, nil
}

// Read resolves the URI's sandbox-relative path through the resolver and
// returns its contents. The embedded path is never trusted directly.
func (c *Catalog) Read(uri string) (*Contents, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}

	abs, err := c.paths.Resolve(strings.TrimPrefix(uri, Scheme))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}

	fd, err := fsops.Read(abs)
	if err != nil {
		return nil, err
	}

	contents := &Contents{
		URI:      uri,
		Name:     filepath.Base(abs),
		MimeType: fd.MimeType,
	}
	if fd.IsText {
		contents.Text = fd.Text
	} else {
		contents.Blob = base64.StdEncoding.EncodeToString(fd.Blob)
	}
	return contents, nil
}

// Templates returns the static discoverability payload.
func (c *Catalog) Templates() []Template {
	return []Template{
		{
			URITemplate: "file:///{relative_path}",
			Name:        "Sandbox files",
			Title:       "Files under sandbox root",
			Description: "Access files under the configured sandbox root",
			MimeType:    "application/octet-stream",
		},
	}
}
