package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"media-variants/internal/logging"
)

// Local stores files on the local filesystem under root and serves them
// from urlPrefix.
type Local struct {
	root      string
	urlPrefix string
}

// NewLocal creates a local backend rooted at root. The directory is created
// if it does not exist.
func NewLocal(root, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	logging.Debug("Local storage root: %s", root)
	return &Local{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Root returns the backend's root directory.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) Write(_ context.Context, path string, contents []byte) error {
	full, err := l.AbsolutePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(full, contents, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (l *Local) Read(_ context.Context, path string) ([]byte, error) {
	full, err := l.AbsolutePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	full, err := l.AbsolutePath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	full, err := l.AbsolutePath(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

func (l *Local) URL(path string) string {
	return l.urlPrefix + "/" + strings.TrimLeft(path, "/")
}

func (l *Local) AbsolutePath(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	return filepath.Join(l.root, clean), nil
}

func (l *Local) Walk(ctx context.Context, prefix string, fn func(path string, size int64) error) error {
	base, err := l.AbsolutePath(prefix)
	if err != nil {
		return err
	}

	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info.Size())
	})
}
