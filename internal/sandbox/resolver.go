// ABOUTME: Resolves untrusted path strings to canonical paths confined to a root.
// ABOUTME: Absolute inputs are re-rooted; traversal and symlink escapes are rejected.

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrViolation indicates a path that would resolve outside the sandbox root.
var ErrViolation = errors.New("path outside sandbox root")

// Resolver confines path resolution to a single absolute root directory
// fixed at construction. It is the only component allowed to turn
// caller-supplied path strings into filesystem paths.
type Resolver struct {
	root string
}

// NewResolver creates a resolver rooted at dir. The directory is created if
// missing and canonicalized so later boundary checks compare like with like.
func NewResolver(dir string) (*Resolver, error) {
	if dir == "" {
		return nil, errors.New("sandbox root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Resolver{root: abs}, nil
}

// Root returns the canonical sandbox root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve turns userPath into a canonical path equal to or strictly under
// the root, or returns ErrViolation.
//
// Absolute inputs are reinterpreted as rooted at the sandbox: the leading
// separator is stripped so "/notes/a.txt" addresses <root>/notes/a.txt,
// never the real filesystem root. Canonicalization happens after the join;
// cleaning the user path first would let ".." segments survive into the
// joined path.
func (r *Resolver) Resolve(userPath string) (string, error) {
	p := filepath.FromSlash(userPath)
	if filepath.IsAbs(p) {
		p = strings.TrimLeft(p, string(filepath.Separator))
	}

	candidate := filepath.Join(r.root, p)

	// Resolve symlinks so a link pointing outside the root is caught by the
	// boundary check below. When the target does not exist yet (e.g. a file
	// about to be written), canonicalize the deepest existing ancestor and
	// re-join the not-yet-existing remainder onto it.
	candidate = evalDeepest(candidate)

	rel, err := filepath.Rel(r.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrViolation, userPath)
	}
	return candidate, nil
}

// evalDeepest canonicalizes path through the deepest ancestor that exists.
// Components below that ancestor are joined back on unresolved, so a path
// like <link-to-outside>/sub/file.txt still lands on the link's real target
// even when neither sub nor file.txt exists yet.
func evalDeepest(path string) string {
	suffix := ""
	for cur := path; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, suffix)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		cur = parent
	}
}

// Rel returns abs relative to the root in slash form. abs must have come
// from Resolve; anything else falls back to the path's base name.
func (r *Resolver) Rel(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return filepath.Base(abs)
	}
	return filepath.ToSlash(rel)
}
