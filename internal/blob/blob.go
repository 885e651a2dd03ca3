// Package blob provides the external file store used to keep raw import
// payloads. Object keys are random UUIDs with the original file extension
// preserved, so two uploads of the same file never collide.
package blob

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get and Delete when no object exists under
// the given key.
var ErrNotFound = errors.New("blob: object not found")

// Store is the narrow interface the import pipeline depends on. The store
// is an independently-failing system: it shares no transaction with the
// database.
type Store interface {
	// Put uploads content under a freshly generated key and returns the key.
	// The original file name contributes only its extension to the key.
	Put(ctx context.Context, content []byte, originalName, contentType string) (string, error)

	// Get returns the raw bytes stored under objectName.
	Get(ctx context.Context, objectName string) ([]byte, error)

	// Delete removes the object. Deleting a missing object returns ErrNotFound.
	Delete(ctx context.Context, objectName string) error
}

// NewObjectName generates a unique object key, keeping the extension of the
// original file name so downloads come back with a usable suffix.
func NewObjectName(originalName string) string {
	return uuid.New().String() + filepath.Ext(originalName)
}
