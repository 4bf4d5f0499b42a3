package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/JonMunkholm/csvvault/internal/config"
	"github.com/google/uuid"
)

// memoryUploads is an in-memory UploadRepository with a unique fingerprint index.
type memoryUploads struct {
	mu      sync.Mutex
	uploads map[uuid.UUID]Upload
	rows    map[uuid.UUID][]UploadRow
	hashes  map[Fingerprint]uuid.UUID

	skipPrecheck bool  // ExistsByFingerprint always reports false
	createErr    error // returned by CreateWithRows before storing anything
	existsErr    error
}

func newMemoryUploads() *memoryUploads {
	return &memoryUploads{
		uploads: make(map[uuid.UUID]Upload),
		rows:    make(map[uuid.UUID][]UploadRow),
		hashes:  make(map[Fingerprint]uuid.UUID),
	}
}

func (m *memoryUploads) ExistsByFingerprint(_ context.Context, fp Fingerprint) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.skipPrecheck {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hashes[fp]
	return ok, nil
}

func (m *memoryUploads) CreateWithRows(_ context.Context, in NewUpload) (Upload, error) {
	if m.createErr != nil {
		return Upload{}, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.hashes[in.Fingerprint]; ok {
		return Upload{}, ErrUniquenessViolation
	}

	u := Upload{
		ID:          uuid.New(),
		UserID:      in.OwnerID,
		Filename:    in.Filename,
		ContentHash: in.Fingerprint.String(),
		RowCount:    in.RowCount,
		ColumnCount: in.ColumnCount,
		UploadedAt:  in.UploadedAt,
		BlobKey:     in.BlobKey,
	}
	rows := make([]UploadRow, len(in.Rows))
	for i, values := range in.Rows {
		rows[i] = UploadRow{RowIndex: i, Values: values}
	}

	m.uploads[u.ID] = u
	m.rows[u.ID] = rows
	m.hashes[in.Fingerprint] = u.ID
	return u, nil
}

func (m *memoryUploads) FindByID(_ context.Context, id uuid.UUID) (Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return Upload{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryUploads) ListRows(_ context.Context, id uuid.UUID) ([]UploadRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memoryUploads) ListByOwner(_ context.Context, owner uuid.UUID) ([]Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Upload
	for _, u := range m.uploads {
		if u.UserID == owner {
			out = append(out, u)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memoryUploads) ListAll(_ context.Context) ([]Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Upload, 0, len(m.uploads))
	for _, u := range m.uploads {
		out = append(out, u)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memoryUploads) DeleteWithRows(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.uploads, id)
	delete(m.rows, id)
	delete(m.hashes, Fingerprint(u.ContentHash))
	return nil
}

func (m *memoryUploads) count() (uploads, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		rows += len(r)
	}
	return len(m.uploads), rows
}

func sortNewestFirst(us []Upload) {
	sort.Slice(us, func(i, j int) bool {
		return us[i].UploadedAt.After(us[j].UploadedAt)
	})
}

// memoryBlobs is an in-memory BlobStore.
type memoryBlobs struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	putErr error
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{blobs: make(map[string][]byte)}
}

func (b *memoryBlobs) Put(_ context.Context, key string, data []byte) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = bytes.Clone(data)
	return nil
}

func (b *memoryBlobs) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (b *memoryBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

func (b *memoryBlobs) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:   1 << 20,
		MaxConcurrent: 4,
		MaxWaitTime:   DefaultMaxWaitTime,
	}
}

func newTestService() (*Service, *memoryUploads, *memoryBlobs) {
	uploads := newMemoryUploads()
	blobs := newMemoryBlobs()
	return NewService(uploads, blobs, testUploadConfig()), uploads, blobs
}

func csvFile(name, content string) *FileInput {
	return &FileInput{Data: []byte(content), Filename: name, ContentType: CSVContentType}
}
