// Package photo stores guest photo and video records and their moderation status.
package photo

import (
	"context"
	"errors"
	"time"
)

// ErrPhotoNotFound is returned when no photo matches the lookup.
var ErrPhotoNotFound = errors.New("photo not found")

// Status is a photo's moderation state.
type Status string

// Moderation states. Rejected photos are deleted, so StatusRejected is never persisted
// by this service; it is accepted for rows written by other tools.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// MediaKind distinguishes images from videos.
type MediaKind string

// Media kinds.
const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Photo is an uploaded image or video.
type Photo struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	URL       string    `json:"url"`
	ObjectKey string    `json:"-"`
	MediaKind MediaKind `json:"media_type"`
	Status    Status    `json:"status"`
	MissionID *string   `json:"mission_id,omitempty"`
	Downloads int       `json:"download_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedTime is the photo's position in a feed: its last approval, falling back to
// creation when it was never updated.
func (p *Photo) FeedTime() time.Time {
	if p.UpdatedAt.IsZero() {
		return p.CreatedAt
	}
	return p.UpdatedAt
}

// Repository persists photos.
type Repository interface {
	// Create inserts p, assigning ID and timestamps when empty.
	Create(ctx context.Context, p *Photo) error
	GetByID(ctx context.Context, id string) (*Photo, error)
	// GetMany returns the photos that exist among ids, in no particular order.
	GetMany(ctx context.Context, ids []string) ([]*Photo, error)
	// ListByEvent returns the event's photos newest first. An empty status matches all.
	// limit <= 0 means no limit.
	ListByEvent(ctx context.Context, eventID string, status Status, limit int) ([]*Photo, error)
	// Approve sets status approved and updated_at = now on ids in one statement and
	// returns the number of rows changed.
	Approve(ctx context.Context, ids []string, now time.Time) (int, error)
	// Delete removes ids and returns the deleted rows.
	Delete(ctx context.Context, ids []string) ([]*Photo, error)
	// DeleteByEvent removes all photos of an event and returns them.
	DeleteByEvent(ctx context.Context, eventID string) ([]*Photo, error)
	// ListChangedSince returns approved photos created or updated after since,
	// newest FeedTime first.
	ListChangedSince(ctx context.Context, eventID string, since time.Time, limit int) ([]*Photo, error)
	IncrementDownloads(ctx context.Context, id string) error
}
