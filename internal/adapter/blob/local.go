package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Interface guard
var _ Store = (*Local)(nil)

// Local stores blobs as files under a root folder. The opaque path handed out
// is "<folder>/<name>", never the absolute location.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) Upload(_ context.Context, data []byte, name, folder string) (string, error) {
	rel, err := sanitize(path.Join(folder, name))
	if err != nil {
		return "", err
	}
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}

	// O_EXCL: a colliding name is an uploader bug, not something to paper over.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("blob: create %s: %w", rel, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("blob: write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("blob: close %s: %w", rel, err)
	}
	return rel, nil
}

func (l *Local) Read(_ context.Context, p string) ([]byte, error) {
	rel, err := sanitize(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", rel, err)
	}
	return data, nil
}

func (l *Local) Delete(_ context.Context, p string) (bool, error) {
	rel, err := sanitize(p)
	if err != nil {
		return false, err
	}
	err = os.Remove(filepath.Join(l.root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blob: delete %s: %w", rel, err)
	}
	return true, nil
}

// sanitize rejects paths that would escape the root.
func sanitize(p string) (string, error) {
	clean := path.Clean("/" + p)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("blob: invalid path %q", p)
	}
	return clean, nil
}
