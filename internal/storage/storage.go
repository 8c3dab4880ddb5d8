// Package storage defines the media store contract consumed by the worker
// pipeline and its S3-compatible implementation.
//
// The pipeline only depends on the Store interface; tests substitute
// in-memory fakes. Delete failures are the caller's to log; implementations
// return them rather than swallowing.
package storage

import "context"

// Object identifies a stored artifact.
type Object struct {
	URL string
	ID  string
}

// Store is the blob storage collaborator contract.
type Store interface {
	// Upload publishes a local file under the given logical identifier.
	Upload(ctx context.Context, localPath, logicalID string) (Object, error)
	// Download fetches a source artifact to destPath. The source may be a
	// plain object key in the configured bucket or an absolute http(s) URL.
	Download(ctx context.Context, source, destPath string) error
	// Delete removes a stored artifact by identifier.
	Delete(ctx context.Context, id string) error
}
