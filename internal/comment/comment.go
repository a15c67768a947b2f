// Package comment stores guest comments on photos.
package comment

import (
	"context"
	"errors"
	"time"
)

// ErrCommentNotFound is returned when no comment matches the lookup.
var ErrCommentNotFound = errors.New("comment not found")

// Status is a comment's moderation state. Rejected comments are deleted.
type Status string

// Moderation states.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Comment is a guest comment. Content and AuthorName are profanity-filtered before
// they are stored.
type Comment struct {
	ID          string    `json:"id"`
	PhotoID     string    `json:"photo_id"`
	EventID     string    `json:"event_id"`
	Content     string    `json:"content"`
	AuthorToken string    `json:"-"`
	AuthorName  string    `json:"author_name,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository persists comments.
type Repository interface {
	Create(ctx context.Context, c *Comment) error
	// GetMany returns the comments that exist among ids.
	GetMany(ctx context.Context, ids []string) ([]*Comment, error)
	// Approve sets status approved on ids and returns the number changed.
	// created_at is left as is.
	Approve(ctx context.Context, ids []string) (int, error)
	// Delete removes ids and returns the number removed.
	Delete(ctx context.Context, ids []string) (int, error)
	// ListByPhoto returns a photo's comments oldest first.
	ListByPhoto(ctx context.Context, photoID string, approvedOnly bool) ([]*Comment, error)
	// ListPending returns an event's pending comments oldest first.
	ListPending(ctx context.Context, eventID string) ([]*Comment, error)
	// ListApprovedSince returns approved comments created after since, newest first.
	ListApprovedSince(ctx context.Context, eventID string, since time.Time, limit int) ([]*Comment, error)
	DeleteByEvent(ctx context.Context, eventID string) (int, error)
}
