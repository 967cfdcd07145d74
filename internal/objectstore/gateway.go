// Package objectstore is the gateway to external object storage: byte
// transfer on behalf of steps and time-limited presigned URLs for clients.
package objectstore

import (
	"context"
	"io"
	"time"
)

// PresignedPut is a one-shot upload grant. Headers are suggested to the
// client but intentionally not part of the signature.
type PresignedPut struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Gateway is the storage capability the pipeline consumes. Implementations
// are stateless per call and safe for concurrent use.
type Gateway interface {
	// PresignPut issues a time-limited upload URL for key.
	PresignPut(ctx context.Context, key, contentType string) (PresignedPut, error)
	// PresignGet issues a fresh time-limited download URL for key. URLs
	// are computed per call and must never be persisted.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Upload writes one object.
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	// Download fetches an object into a local file.
	Download(ctx context.Context, key, localPath string) error
	// Exists reports whether key is already present, for idempotent
	// check-and-skip step re-execution.
	Exists(ctx context.Context, key string) (bool, error)
	// UploadDir recursively uploads a local directory under keyPrefix,
	// used for HLS playlist+segment trees.
	UploadDir(ctx context.Context, localDir, keyPrefix string) error
}
