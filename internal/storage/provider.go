// Package storage archives raw page snapshots. The archive keeps the
// fetched HTML as evidence of what was ingested, independent of the vector
// store's extracted text.
package storage

import "context"

// Provider writes raw artifacts and returns a URI for the stored object.
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) (string, error)
	Close() error
}
