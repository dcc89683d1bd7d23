package upload

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage is a flat key/value object store.
type Storage interface {
	Put(ctx context.Context, path, contentType string, data []byte) error
	// Open returns the object body and its content type.
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
}
