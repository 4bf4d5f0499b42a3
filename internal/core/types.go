package core

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated identity making a request.
// Every core operation receives it explicitly.
type Principal struct {
	ID      uuid.UUID
	IsAdmin bool
}

// User is a person known to the system through an external identity provider.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	UID       string    `json:"uid"`      // Subject id at the provider
	Provider  string    `json:"provider"` // e.g. "google_oauth2"
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal returns the request identity for u.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, IsAdmin: u.Admin}
}

// Identity is the profile returned by the external identity provider on login.
type Identity struct {
	Provider string
	UID      string
	Email    string
	Name     string
}

// Upload is one ingested CSV file. Uploads are immutable once created.
type Upload struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"contentHash"`
	RowCount    int       `json:"rowCount"`
	ColumnCount int       `json:"columnCount"`
	UploadedAt  time.Time `json:"uploadedAt"`
	BlobKey     string    `json:"-"`
}

// UploadRow is one parsed row of an Upload.
type UploadRow struct {
	RowIndex int      `json:"rowIndex"`
	Values   []string `json:"values"`
}

// UploadDetail is an Upload together with its full row set.
type UploadDetail struct {
	Upload
	Rows []UploadRow `json:"rows"`
}

// NewUpload carries everything the repository needs to create an Upload
// and its rows in one transaction.
type NewUpload struct {
	OwnerID     uuid.UUID
	Filename    string
	Fingerprint Fingerprint
	RowCount    int
	ColumnCount int
	UploadedAt  time.Time
	BlobKey     string
	Rows        [][]string
}

// FileInput is a file as submitted by an uploader. A nil *FileInput means
// no file was provided at all, which is distinct from an empty Data slice.
type FileInput struct {
	Data        []byte
	Filename    string // As declared by the uploader
	ContentType string // As declared by the uploader
}

// ParsedTable is the validated content of a CSV file.
type ParsedTable struct {
	Rows        [][]string
	RowCount    int
	ColumnCount int
}

// Download is a stored file ready to be streamed back to its owner.
type Download struct {
	Filename string
	Size     int64 // -1 when unknown
	Body     io.ReadCloser
}
