// Package storage implements the per-owner sandboxed file store.
//
// Every owner gets a dedicated directory under the configured upload root;
// all path construction for that owner must resolve inside it. Writes go
// through a temp file and an atomic rename, so a failed upload never leaves
// a partially written file visible at the final path.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/semekhin/fileward/internal/errs"
)

// Engine performs filesystem operations inside owner sandboxes.
type Engine struct {
	// root is the absolute upload root; owner directories live directly under it.
	root string
}

// SaveResult reports the outcome of a completed write.
type SaveResult struct {
	Filename string // sanitized name the bytes were stored under
	Size     int64  // measured byte count, authoritative
}

// New creates an Engine rooted at dir, creating the directory if absent.
func New(dir string) (*Engine, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Engine{root: abs}, nil
}

// SanitizeFilename normalizes a client-supplied filename and rejects anything
// that is empty or still carries a path separator or parent-directory token
// after normalization. This is the first line of defense against names like
// "../../etc/passwd" or "sub/dir/name".
func SanitizeFilename(raw string) (string, error) {
	name := filepath.Clean(strings.TrimSpace(raw))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: empty filename", errs.ErrInvalidInput)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: unsafe filename", errs.ErrInvalidInput)
	}
	return name, nil
}

// OwnerDir returns the sandbox directory for an owner. The segment is derived
// deterministically from the owner id; no other input reaches the path.
func (e *Engine) OwnerDir(ownerID uuid.UUID) string {
	return filepath.Join(e.root, "user_"+ownerID.String())
}

// securePath joins the owner directory with a sanitized name and re-verifies
// that the canonical result is still a descendant of the owner directory.
// Sanitization alone is not trusted here.
func (e *Engine) securePath(ownerDir, name string) (string, error) {
	target, err := filepath.Abs(filepath.Join(ownerDir, name))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(target, ownerDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes owner directory", errs.ErrSecurityViolation)
	}
	return target, nil
}

// Save writes the stream under the owner's directory, replacing any existing
// file with the same name atomically. An empty stream is rejected and nothing
// becomes visible at the final path. The temp file is removed on every exit.
func (e *Engine) Save(ownerID uuid.UUID, rawName string, r io.Reader) (*SaveResult, error) {
	name, err := SanitizeFilename(rawName)
	if err != nil {
		return nil, err
	}

	dir := e.OwnerDir(ownerID)
	// MkdirAll tolerates a concurrent first upload creating the directory.
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create owner directory: %w", err)
	}

	target, err := e.securePath(dir, name)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if size == 0 {
		tmp.Close()
		return nil, fmt.Errorf("%w: empty file", errs.ErrInvalidInput)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("sync upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}
	return &SaveResult{Filename: name, Size: size}, nil
}

// FilePath recomputes the sandboxed path for a stored filename. It performs
// no authorization; callers must verify ownership before using the result.
func (e *Engine) FilePath(ownerID uuid.UUID, filename string) (string, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	return e.securePath(e.OwnerDir(ownerID), name)
}

// Remove deletes a single stored file. A file already missing on disk is
// tolerated: metadata is authoritative, the filesystem is derived.
func (e *Engine) Remove(ownerID uuid.UUID, filename string) error {
	p, err := e.FilePath(ownerID, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// RemoveOwnerDir deletes the owner's entire subtree best-effort: a failure on
// one entry does not abort the rest. It returns the paths that could not be
// deleted. A missing owner directory is a no-op.
func (e *Engine) RemoveOwnerDir(ownerID uuid.UUID) ([]string, error) {
	dir := e.OwnerDir(ownerID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read owner directory: %w", err)
	}

	var failed []string
	for _, ent := range entries {
		p := filepath.Join(dir, ent.Name())
		if err := os.RemoveAll(p); err != nil {
			failed = append(failed, p)
		}
	}
	if len(failed) == 0 {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			failed = append(failed, dir)
		}
	}
	return failed, nil
}
