// Package storage abstracts the file tree that holds original uploads and
// derived variants. Paths are storage-relative and forward-slash separated;
// the backend decides where they physically live.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when reading a path that does not exist.
	ErrNotFound = errors.New("storage: file not found")

	// ErrNotSupported is returned by backends that cannot satisfy an
	// operation, e.g. AbsolutePath on object storage.
	ErrNotSupported = errors.New("storage: operation not supported")
)

// Backend is the storage contract shared by the generator, cleaner and
// orphan reconciler.
type Backend interface {
	// Write stores contents at path, creating parent directories as needed.
	Write(ctx context.Context, path string, contents []byte) error

	// Read returns the contents at path, or ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the file at path. Deleting a missing file is a no-op.
	Delete(ctx context.Context, path string) error

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// URL returns the public URL for a path.
	URL(path string) string

	// AbsolutePath returns the local filesystem path for a storage path,
	// or ErrNotSupported for backends without one.
	AbsolutePath(path string) (string, error)

	// Walk calls fn for every file under prefix with its storage-relative
	// path and size. Returning an error from fn stops the walk.
	Walk(ctx context.Context, prefix string, fn func(path string, size int64) error) error
}
