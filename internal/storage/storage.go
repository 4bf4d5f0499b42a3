// Package storage keeps the raw bytes of uploaded files.
//
// Two stores implement core.BlobStore: MinIO (any S3-compatible service) for
// deployments and an in-memory store for development and tests.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvvault/internal/config"
	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/gabriel-vasile/mimetype"
)

// ErrBlobNotFound is returned when a key has no stored object.
var ErrBlobNotFound = core.ErrBlobNotFound

// New builds the blob store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (core.BlobStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return NewMemoryStore(), nil
	case "minio", "":
		store, err := NewMinIOStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx, cfg.Region); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// contentType sniffs the media type recorded on a stored object.
func contentType(data []byte) string {
	return mimetype.Detect(data).String()
}
