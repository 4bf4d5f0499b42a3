package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/csvvault/internal/config"
	"github.com/JonMunkholm/csvvault/internal/logging"
	"github.com/google/uuid"
)

// Service is the entry point for every upload operation. Callers pass the
// requesting Principal explicitly; the service never looks it up itself.
type Service struct {
	uploads   UploadRepository
	blobs     BlobStore
	validator CSVValidator
	limiter   *UploadLimiter
	events    EventPublisher
	now       func() time.Time

	publishTimeout time.Duration
}

// defaultPublishTimeout bounds one event delivery.
const defaultPublishTimeout = 5 * time.Second

// Option customizes a Service.
type Option func(*Service)

// WithEventPublisher sends upload events to p after each create and delete.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// NewService wires the repository and blob store with upload settings.
func NewService(uploads UploadRepository, blobs BlobStore, cfg config.UploadConfig, opts ...Option) *Service {
	s := &Service{
		uploads:   uploads,
		blobs:     blobs,
		validator: CSVValidator{SkipHeader: cfg.SkipHeader},
		limiter:   NewUploadLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		events:    nopPublisher{},
		now:       time.Now,

		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create ingests file on behalf of p. The ingestion slot is held only while
// the file is validated and stored.
func (s *Service) Create(ctx context.Context, p Principal, file *FileInput) (Upload, error) {
	ctx = logging.WithUserID(ctx, p.ID.String())
	logger := logging.FromContext(ctx)
	if file != nil {
		logger = logger.With("filename", file.Filename, "size", len(file.Data))
	}

	start := time.Now()
	upload, err := s.ingestWithSlot(ctx, file, p.ID)
	if err != nil {
		if errors.Is(err, ErrTooManyUploads) {
			return Upload{}, err
		}
		if r, ok := AsRejection(err); ok {
			logger.Info("upload rejected", "reason", r.Reason, "detail", r.Detail)
		} else {
			logger.Error("upload failed", "error", err)
		}
		return Upload{}, err
	}

	logger.Info("upload stored",
		"upload_id", upload.ID,
		"rows", upload.RowCount,
		"columns", upload.ColumnCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.publish(ctx, newUploadEvent(EventUploadCreated, p, upload, s.now()))
	return upload, nil
}

func (s *Service) ingestWithSlot(ctx context.Context, file *FileInput, ownerID uuid.UUID) (Upload, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return Upload{}, err
	}
	defer s.limiter.Release()

	return s.Ingest(ctx, file, ownerID)
}

// Read returns an upload and its rows. Uploads p may not view are reported
// as ErrNotFound.
func (s *Service) Read(ctx context.Context, p Principal, id uuid.UUID) (UploadDetail, error) {
	upload, err := s.visibleUpload(ctx, p, id)
	if err != nil {
		return UploadDetail{}, err
	}

	rows, err := s.uploads.ListRows(ctx, upload.ID)
	if err != nil {
		return UploadDetail{}, fmt.Errorf("list rows: %w", err)
	}

	return UploadDetail{Upload: upload, Rows: rows}, nil
}

// ListOwn returns p's uploads, newest first.
func (s *Service) ListOwn(ctx context.Context, p Principal) ([]Upload, error) {
	uploads, err := s.uploads.ListByOwner(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list uploads by owner: %w", err)
	}
	return uploads, nil
}

// ListAll returns every upload, newest first. Only admins may call it.
func (s *Service) ListAll(ctx context.Context, p Principal) ([]Upload, error) {
	if !CanListAll(p) {
		return nil, ErrForbidden
	}
	uploads, err := s.uploads.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all uploads: %w", err)
	}
	return uploads, nil
}

// Download opens the stored bytes of an upload. The caller closes Body.
func (s *Service) Download(ctx context.Context, p Principal, id uuid.UUID) (Download, error) {
	upload, err := s.visibleUpload(ctx, p, id)
	if err != nil {
		return Download{}, err
	}

	body, size, err := s.blobs.Get(ctx, upload.BlobKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			// The record committed but its bytes are gone.
			logging.FromContext(ctx).Error("stored file missing for upload",
				"upload_id", upload.ID,
				"owner_id", upload.UserID,
				"blob_key", upload.BlobKey,
			)
		}
		return Download{}, fmt.Errorf("open stored file: %w", err)
	}

	return Download{Filename: upload.Filename, Size: size, Body: body}, nil
}

// Delete removes an upload and all of its rows, then its stored bytes.
func (s *Service) Delete(ctx context.Context, p Principal, id uuid.UUID) error {
	upload, err := s.visibleUpload(ctx, p, id)
	if err != nil {
		return err
	}

	if err := s.uploads.DeleteWithRows(ctx, upload.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete upload: %w", err)
	}

	s.discardBlob(ctx, upload.BlobKey)

	ctx = logging.WithUserID(ctx, p.ID.String())
	logging.FromContext(ctx).Info("upload deleted",
		"upload_id", upload.ID,
		"owner_id", upload.UserID,
	)
	s.publish(ctx, newUploadEvent(EventUploadDeleted, p, upload, s.now()))
	return nil
}

// publish delivers event best-effort; the change it describes is already
// committed. It outlives a cancelled request but not publishTimeout.
func (s *Service) publish(ctx context.Context, event UploadEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.events.Publish(pubCtx, event); err != nil {
		logging.FromContext(ctx).Warn("upload event not published",
			"type", event.Type,
			"upload_id", event.UploadID,
			"error", err,
		)
	}
}

// LimiterStatus reports ingestion slot usage.
func (s *Service) LimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight ingestions finish or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) visibleUpload(ctx context.Context, p Principal, id uuid.UUID) (Upload, error) {
	upload, err := s.uploads.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Upload{}, ErrNotFound
		}
		return Upload{}, fmt.Errorf("find upload: %w", err)
	}

	if !CanView(p, upload) {
		slog.Debug("hiding upload from non-owner", "upload_id", id, "user_id", p.ID)
		return Upload{}, ErrNotFound
	}

	return upload, nil
}
