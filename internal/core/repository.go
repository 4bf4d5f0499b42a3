package core

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// UploadRepository persists uploads and their rows.
//
// CreateWithRows must be atomic: the upload and all of its rows commit
// together or not at all. The content hash unique constraint enforced by the
// store is the authoritative duplicate guard and surfaces as
// ErrUniquenessViolation.
type UploadRepository interface {
	ExistsByFingerprint(ctx context.Context, fp Fingerprint) (bool, error)
	CreateWithRows(ctx context.Context, in NewUpload) (Upload, error)
	FindByID(ctx context.Context, id uuid.UUID) (Upload, error)
	ListRows(ctx context.Context, uploadID uuid.UUID) ([]UploadRow, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Upload, error) // newest first
	ListAll(ctx context.Context) ([]Upload, error)                        // newest first
	DeleteWithRows(ctx context.Context, id uuid.UUID) error
}

// UserRepository persists users created from external identity logins.
type UserRepository interface {
	// UpsertFromIdentity creates the user on first login or refreshes the
	// profile fields of an existing one (matched by email). admin only ever
	// raises the stored flag.
	UpsertFromIdentity(ctx context.Context, id Identity, admin bool) (User, error)
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
}

// BlobStore keeps the raw bytes of uploaded files.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}
