package core

import (
	"context"
	"time"
)

// Upload event types.
const (
	EventUploadCreated = "upload.created"
	EventUploadDeleted = "upload.deleted"
)

// UploadEvent describes a committed change to an upload. Events are
// published after the change commits; a failed publish never undoes it.
type UploadEvent struct {
	Type        string    `msgpack:"type" json:"type"`
	UploadID    string    `msgpack:"upload_id" json:"uploadId"`
	OwnerID     string    `msgpack:"owner_id" json:"ownerId"`
	ActorID     string    `msgpack:"actor_id" json:"actorId"`
	Filename    string    `msgpack:"filename" json:"filename"`
	ContentHash string    `msgpack:"content_hash" json:"contentHash"`
	RowCount    int       `msgpack:"row_count" json:"rowCount"`
	ColumnCount int       `msgpack:"column_count" json:"columnCount"`
	OccurredAt  time.Time `msgpack:"occurred_at" json:"occurredAt"`
}

// EventPublisher delivers upload events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event UploadEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, UploadEvent) error { return nil }

func newUploadEvent(eventType string, actor Principal, u Upload, at time.Time) UploadEvent {
	return UploadEvent{
		Type:        eventType,
		UploadID:    u.ID.String(),
		OwnerID:     u.UserID.String(),
		ActorID:     actor.ID.String(),
		Filename:    u.Filename,
		ContentHash: u.ContentHash,
		RowCount:    u.RowCount,
		ColumnCount: u.ColumnCount,
		OccurredAt:  at.UTC(),
	}
}
