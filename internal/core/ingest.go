package core

// ingest.go is the upload ingestion pipeline.
//
// The sequence short-circuits on the first failure and every failure is
// terminal:
//
//  1. NoFileProvided   - no file at all
//  2. InvalidFileType  - declared type is not text/csv or name lacks ".csv"
//  3. EmptyFile        - zero bytes
//  4. fingerprint the raw bytes
//  5. DuplicateFile    - fingerprint already stored (best-effort pre-check)
//  6. CSV validation   - rejections propagate unchanged
//  7. store blob, then persist upload and rows in one transaction;
//     a lost race on the unique constraint becomes DuplicateFile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// CSVContentType is the only accepted declared media type.
const CSVContentType = "text/csv"

// CSVExtension is the required filename suffix. The match is case-sensitive.
const CSVExtension = ".csv"

// Ingest validates file and stores it for ownerID.
// It returns a *Rejection for user-correctable problems and a wrapped error
// for storage failures.
func (s *Service) Ingest(ctx context.Context, file *FileInput, ownerID uuid.UUID) (Upload, error) {
	if file == nil {
		return Upload{}, reject(NoFileProvided)
	}

	if file.ContentType != CSVContentType || !strings.HasSuffix(file.Filename, CSVExtension) {
		return Upload{}, reject(InvalidFileType)
	}

	if len(file.Data) == 0 {
		return Upload{}, reject(EmptyFile)
	}

	fp := ComputeFingerprint(file.Data)

	// The unique constraint is the real guard; this only saves a parse.
	exists, err := s.uploads.ExistsByFingerprint(ctx, fp)
	if err != nil {
		return Upload{}, fmt.Errorf("check fingerprint: %w", err)
	}
	if exists {
		return Upload{}, reject(DuplicateFile)
	}

	table, err := s.validator.ParseAndValidate(file.Data)
	if err != nil {
		return Upload{}, err
	}

	blobKey := newBlobKey()
	if err := s.blobs.Put(ctx, blobKey, file.Data); err != nil {
		return Upload{}, fmt.Errorf("store file: %w", err)
	}

	upload, err := s.uploads.CreateWithRows(ctx, NewUpload{
		OwnerID:     ownerID,
		Filename:    file.Filename,
		Fingerprint: fp,
		RowCount:    table.RowCount,
		ColumnCount: table.ColumnCount,
		UploadedAt:  s.now().UTC(),
		BlobKey:     blobKey,
		Rows:        table.Rows,
	})
	if err != nil {
		s.discardBlob(ctx, blobKey)
		if errors.Is(err, ErrUniquenessViolation) {
			return Upload{}, reject(DuplicateFile)
		}
		return Upload{}, fmt.Errorf("persist upload: %w", err)
	}

	return upload, nil
}

// discardBlob removes a blob whose upload record was never committed.
func (s *Service) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("orphaned blob left in storage", "blob_key", key, "error", err)
	}
}

func newBlobKey() string {
	return "uploads/" + uuid.NewString() + CSVExtension
}
