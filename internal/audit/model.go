// Package audit records organizer moderation actions in a tamper-evident log.
package audit

import (
	"context"
	"time"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entity types.
const (
	EntityEvent = "event"
)

// Actions.
const (
	ActionApprovePhotos      = "approve_photos"
	ActionRejectPhotos       = "reject_photos"
	ActionApproveComments    = "approve_comments"
	ActionRejectComments     = "reject_comments"
	ActionUpdateSocialConfig = "update_social_config"
	ActionSetPanicMode       = "set_panic_mode"
	ActionDeleteEvent        = "delete_event"
)

// Log is one stored audit record.
type Log struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Count      int       `json:"count"`
	CreatedAt  time.Time `json:"created_at"`

	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// PreviousHash is the hash of the preceding record; empty for the first.
	PreviousHash string `json:"previous_hash,omitempty"`
	IPAnonymized bool   `json:"-"`
}

// LogEntry is the input for a new audit record.
type LogEntry struct {
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string
	// Count is the number of items the action affected.
	Count int

	RequestID string
	IPAddress string
	UserAgent string
}

// Repository stores audit records.
type Repository interface {
	// Append stores entry and returns the created record.
	Append(ctx context.Context, entry LogEntry) (*Log, error)
	// QueryByEntity returns records for an entity, newest first. limit <= 0 means no limit.
	QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Log, error)
	// QueryByActor returns records written by an organizer, newest first.
	QueryByActor(ctx context.Context, actorID string, limit int) ([]*Log, error)
	// AnonymizeBefore truncates the IP address of records created before cutoff and
	// returns how many were changed.
	AnonymizeBefore(ctx context.Context, cutoff time.Time) (int, error)
}
