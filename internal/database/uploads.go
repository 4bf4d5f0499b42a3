package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const uploadColumns = `id, user_id, filename, content_hash, row_count, column_count, uploaded_at, blob_key`

// contentHashConstraint is the unique constraint that settles duplicate races.
const contentHashConstraint = "uploads_content_hash_key"

// UploadRepository stores uploads in the uploads and upload_rows tables.
type UploadRepository struct {
	db DB
}

var _ core.UploadRepository = (*UploadRepository)(nil)

// NewUploadRepository returns a repository backed by db.
func NewUploadRepository(db DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// ExistsByFingerprint reports whether any upload already has fp as its hash.
func (r *UploadRepository) ExistsByFingerprint(ctx context.Context, fp core.Fingerprint) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM uploads WHERE content_hash = $1)`,
		fp.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query content hash: %w", err)
	}
	return exists, nil
}

// CreateWithRows inserts the upload and copies its rows in one transaction.
func (r *UploadRepository) CreateWithRows(ctx context.Context, in core.NewUpload) (core.Upload, error) {
	upload := core.Upload{
		ID:          uuid.New(),
		UserID:      in.OwnerID,
		Filename:    in.Filename,
		ContentHash: in.Fingerprint.String(),
		RowCount:    in.RowCount,
		ColumnCount: in.ColumnCount,
		UploadedAt:  in.UploadedAt,
		BlobKey:     in.BlobKey,
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return core.Upload{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx) // No-op after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO uploads (`+uploadColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		upload.ID, upload.UserID, upload.Filename, upload.ContentHash,
		upload.RowCount, upload.ColumnCount, upload.UploadedAt, upload.BlobKey,
	)
	if err != nil {
		if isUniqueViolation(err, contentHashConstraint) {
			return core.Upload{}, core.ErrUniquenessViolation
		}
		return core.Upload{}, fmt.Errorf("insert upload: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"upload_rows"},
		[]string{"upload_id", "row_index", "values"},
		pgx.CopyFromSlice(len(in.Rows), func(i int) ([]any, error) {
			return []any{upload.ID, i, in.Rows[i]}, nil
		}),
	)
	if err != nil {
		return core.Upload{}, fmt.Errorf("copy rows: %w", err)
	}
	if copied != int64(len(in.Rows)) {
		return core.Upload{}, fmt.Errorf("copy rows: wrote %d of %d", copied, len(in.Rows))
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, contentHashConstraint) {
			return core.Upload{}, core.ErrUniquenessViolation
		}
		return core.Upload{}, fmt.Errorf("commit upload: %w", err)
	}

	return upload, nil
}

// FindByID returns core.ErrNotFound when no upload has id.
func (r *UploadRepository) FindByID(ctx context.Context, id uuid.UUID) (core.Upload, error) {
	row := r.db.QueryRow(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id)
	upload, err := scanUpload(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Upload{}, core.ErrNotFound
		}
		return core.Upload{}, fmt.Errorf("query upload: %w", err)
	}
	return upload, nil
}

// ListRows returns every row of an upload ordered by row index.
func (r *UploadRepository) ListRows(ctx context.Context, uploadID uuid.UUID) ([]core.UploadRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT row_index, "values" FROM upload_rows WHERE upload_id = $1 ORDER BY row_index`,
		uploadID,
	)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := []core.UploadRow{}
	for rows.Next() {
		var row core.UploadRow
		if err := rows.Scan(&row.RowIndex, &row.Values); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// ListByOwner returns ownerID's uploads, newest first.
func (r *UploadRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]core.Upload, error) {
	return r.list(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE user_id = $1 ORDER BY uploaded_at DESC, id DESC`,
		ownerID,
	)
}

// ListAll returns every upload, newest first.
func (r *UploadRepository) ListAll(ctx context.Context) ([]core.Upload, error) {
	return r.list(ctx, `SELECT `+uploadColumns+` FROM uploads ORDER BY uploaded_at DESC, id DESC`)
}

// DeleteWithRows removes the rows and then the upload in one transaction.
func (r *UploadRepository) DeleteWithRows(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `DELETE FROM upload_rows WHERE upload_id = $1`, id); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (r *UploadRepository) list(ctx context.Context, sql string, args ...any) ([]core.Upload, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	out := []core.Upload{}
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, upload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return out, nil
}

func scanUpload(row pgx.Row) (core.Upload, error) {
	var u core.Upload
	err := row.Scan(
		&u.ID, &u.UserID, &u.Filename, &u.ContentHash,
		&u.RowCount, &u.ColumnCount, &u.UploadedAt, &u.BlobKey,
	)
	return u, err
}
