// Package storage defines the interface for an artifact byte store.
// This abstraction keeps the content store independent of a specific backend
// (local filesystem, Google Cloud Storage).
package storage

import "context"

// Provider persists artifact bytes under an object path and returns the
// stored location. Saves must be overwrite-tolerant: reprocessing the same
// job rewrites the same paths without error.
type Provider interface {
	Save(ctx context.Context, objectPath string, data []byte) (string, error)
}
