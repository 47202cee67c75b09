// ABOUTME: Filesystem pack: read/write/append/list/mkdir/move/delete inside the sandbox.
// ABOUTME: Every path goes through the sandbox resolver before any filesystem access.

package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/crucible-tools/crucible/internal/content"
	"github.com/crucible-tools/crucible/internal/fsops"
	"github.com/crucible-tools/crucible/internal/resources"
	"github.com/crucible-tools/crucible/internal/sandbox"
)

// FSPack creates the filesystem tools over the given resolver.
func FSPack(paths *sandbox.Resolver) []*Tool {
	h := &fsHandlers{paths: paths}
	return []*Tool{
		{
			Definition: Definition{
				Name:         "read_file",
				Description:  "Read a file under the sandbox root. Returns text (utf-8) or base64 blob.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"mimeType":{"type":"string"},"text":{"type":"string"},"blob_b64":{"type":"string"}},"required":["path","mimeType"]}`),
			},
			Handler: h.ReadFile,
		},
		{
			Definition: Definition{
				Name:         "write_file",
				Description:  "Create or overwrite a file with UTF-8 text content.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"text":{"type":"string"},"make_parents":{"type":"boolean"}},"required":["path","text"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}},"required":["ok"]}`),
			},
			Handler: h.WriteFile,
		},
		{
			Definition: Definition{
				Name:         "append_file",
				Description:  "Append UTF-8 text to an existing (or new) file.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"text":{"type":"string"},"make_parents":{"type":"boolean"}},"required":["path","text"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}},"required":["ok"]}`),
			},
			Handler: h.AppendFile,
		},
		{
			Definition: Definition{
				Name:         "list_dir",
				Description:  "List entries (files/dirs) under a directory path.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"recursive":{"type":"boolean"}},"required":["path"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"entries":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"is_dir":{"type":"boolean"},"size":{"type":"integer"},"uri":{"type":"string"}},"required":["name","is_dir","uri"]}}},"required":["entries"]}`),
			},
			Handler: h.ListDir,
		},
		{
			Definition: Definition{
				Name:         "make_dirs",
				Description:  "Create a directory (and parents). No-op if it already exists.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}},"required":["ok"]}`),
			},
			Handler: h.MakeDirs,
		},
		{
			Definition: Definition{
				Name:         "move_path",
				Description:  "Move/rename a file or directory.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"src":{"type":"string"},"dst":{"type":"string"},"make_parents":{"type":"boolean"}},"required":["src","dst"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}},"required":["ok"]}`),
			},
			Handler: h.MovePath,
		},
		{
			Definition: Definition{
				Name:         "delete_path",
				Description:  "Delete a file or an empty directory. Set confirm=true to proceed.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"confirm":{"type":"boolean"}},"required":["path","confirm"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}},"required":["ok"]}`),
			},
			Handler: h.DeletePath,
		},
	}
}

type fsHandlers struct {
	paths *sandbox.Resolver
}

// okResult is the shared {"ok": true} payload for mutating tools.
func okResult() (*content.Result, error) {
	jp, err := content.JSONPart(map[string]bool{"ok": true})
	if err != nil {
		return nil, err
	}
	return content.NewResult(jp), nil
}

type readFileInput struct {
	Path string `json:"path"`
}

func (h *fsHandlers) ReadFile(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in readFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	abs, err := h.paths.Resolve(in.Path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, in.Path)
	}

	fd, err := fsops.Read(abs)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"path":     h.paths.Rel(abs),
		"mimeType": fd.MimeType,
	}
	if fd.IsText {
		payload["text"] = fd.Text
	} else {
		payload["blob_b64"] = base64.StdEncoding.EncodeToString(fd.Blob)
	}

	jp, err := content.JSONPart(payload)
	if err != nil {
		return nil, err
	}
	return content.NewResult(jp), nil
}

type writeFileInput struct {
	Path        string  `json:"path"`
	Text        *string `json:"text"`
	MakeParents bool    `json:"make_parents"`
}

func (h *fsHandlers) WriteFile(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	abs, text, err := h.prepareWrite(input)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(abs, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}
	return okResult()
}

func (h *fsHandlers) AppendFile(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	abs, text, err := h.prepareWrite(input)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening file for append: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return nil, fmt.Errorf("appending to file: %w", err)
	}
	return okResult()
}

// prepareWrite parses write/append input, resolves the target, and creates
// parent directories when requested. Validation runs before any mutation.
func (h *fsHandlers) prepareWrite(input json.RawMessage) (abs, text string, err error) {
	var in writeFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Text == nil {
		return "", "", fmt.Errorf("%w: text is required", ErrInvalidInput)
	}

	abs, err = h.paths.Resolve(in.Path)
	if err != nil {
		return "", "", err
	}
	if in.MakeParents {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return "", "", fmt.Errorf("creating parent directories: %w", err)
		}
	}
	return abs, *in.Text, nil
}

type listDirInput struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type dirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
	URI   string `json:"uri"`
}

func (h *fsHandlers) ListDir(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in listDirInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	abs, err := h.paths.Resolve(in.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, in.Path)
	}

	entries := []dirEntry{}
	appendEntry := func(path string, d fs.DirEntry) {
		// Best-effort listing: entries whose metadata cannot be read are skipped.
		fi, err := d.Info()
		if err != nil {
			return
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return
		}
		var size int64
		if !d.IsDir() {
			size = fi.Size()
		}
		entries = append(entries, dirEntry{
			Name:  filepath.ToSlash(rel),
			IsDir: d.IsDir(),
			Size:  size,
			URI:   resources.FileURI(h.paths.Rel(path)),
		})
	}

	if in.Recursive {
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if path == abs {
				return nil
			}
			appendEntry(path, d)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking directory: %w", err)
		}
	} else {
		dirents, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		for _, d := range dirents {
			appendEntry(filepath.Join(abs, d.Name()), d)
		}
	}

	jp, err := content.JSONPart(map[string]any{"entries": entries})
	if err != nil {
		return nil, err
	}
	return content.NewResult(jp), nil
}

type makeDirsInput struct {
	Path string `json:"path"`
}

func (h *fsHandlers) MakeDirs(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in makeDirsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	abs, err := h.paths.Resolve(in.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating directories: %w", err)
	}
	return okResult()
}

type movePathInput struct {
	Src         string `json:"src"`
	Dst         string `json:"dst"`
	MakeParents bool   `json:"make_parents"`
}

func (h *fsHandlers) MovePath(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in movePathInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	src, err := h.paths.Resolve(in.Src)
	if err != nil {
		return nil, err
	}
	dst, err := h.paths.Resolve(in.Dst)
	if err != nil {
		return nil, err
	}

	if _, err := os.Lstat(src); err != nil {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, in.Src)
	}
	if in.MakeParents {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("creating destination parents: %w", err)
		}
	}

	// Rename replaces an existing destination file atomically where the
	// filesystem supports it.
	if err := os.Rename(src, dst); err != nil {
		return nil, fmt.Errorf("moving path: %w", err)
	}
	return okResult()
}

type deletePathInput struct {
	Path    string `json:"path"`
	Confirm bool   `json:"confirm"`
}

func (h *fsHandlers) DeletePath(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in deletePathInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !in.Confirm {
		return nil, fmt.Errorf("%w: refusing to delete without confirm=true", ErrInvalidInput)
	}

	abs, err := h.paths.Resolve(in.Path)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Already gone: deleting is idempotent.
			return okResult()
		}
		return nil, fmt.Errorf("inspecting path: %w", err)
	}

	if info.IsDir() {
		// Only empty directories may be deleted; never recurse.
		dirents, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		if len(dirents) > 0 {
			return nil, fmt.Errorf("%w: directory not empty", ErrConflict)
		}
	}

	if err := os.Remove(abs); err != nil {
		return nil, fmt.Errorf("deleting path: %w", err)
	}
	return okResult()
}
