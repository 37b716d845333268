// Package docstore holds the uploaded guest document files. Metadata lives
// in the database; only bytes live here.
package docstore

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("document file not found")

type DocStore interface {
	// Save writes r under a new key ending in ext and returns the key and
	// the number of bytes written.
	Save(ctx context.Context, ext string, r io.Reader) (storageKey string, size int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
