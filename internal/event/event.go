// Package event stores events, their social-wall configuration and photo missions.
package event

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEventNotFound is returned when no event matches the lookup.
	ErrEventNotFound = errors.New("event not found")
	// ErrSlugTaken is returned when a generated slug collides with an existing event.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrMissionNotFound is returned when a mission does not exist or belongs to another event.
	ErrMissionNotFound = errors.New("mission not found")
)

// SocialConfig holds the per-event switches that govern guest interaction.
type SocialConfig struct {
	CommentsEnabled  bool `json:"comments_enabled"`
	ReactionsEnabled bool `json:"reactions_enabled"`
	RatingsEnabled   bool `json:"ratings_enabled"`
	TagsEnabled      bool `json:"tags_enabled"`
	// PanicMode hides all content from guests and blocks guest writes.
	PanicMode bool `json:"panic_mode"`
	// RequireApproval creates guest photos as pending.
	RequireApproval bool `json:"require_approval"`
	// RequireModeration creates guest comments as pending.
	RequireModeration bool `json:"require_moderation"`
}

// DefaultSocialConfig returns the configuration of a newly created event.
func DefaultSocialConfig() SocialConfig {
	return SocialConfig{
		CommentsEnabled:  true,
		ReactionsEnabled: true,
	}
}

// SocialConfigPatch is a partial update; nil fields are left unchanged.
type SocialConfigPatch struct {
	CommentsEnabled   *bool `json:"comments_enabled,omitempty"`
	ReactionsEnabled  *bool `json:"reactions_enabled,omitempty"`
	RatingsEnabled    *bool `json:"ratings_enabled,omitempty"`
	TagsEnabled       *bool `json:"tags_enabled,omitempty"`
	PanicMode         *bool `json:"panic_mode,omitempty"`
	RequireApproval   *bool `json:"require_approval,omitempty"`
	RequireModeration *bool `json:"require_moderation,omitempty"`
}

// Apply returns c with the non-nil fields of p applied.
func (c SocialConfig) Apply(p SocialConfigPatch) SocialConfig {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.CommentsEnabled, p.CommentsEnabled)
	set(&c.ReactionsEnabled, p.ReactionsEnabled)
	set(&c.RatingsEnabled, p.RatingsEnabled)
	set(&c.TagsEnabled, p.TagsEnabled)
	set(&c.PanicMode, p.PanicMode)
	set(&c.RequireApproval, p.RequireApproval)
	set(&c.RequireModeration, p.RequireModeration)
	return c
}

// IsEmpty reports whether p changes nothing.
func (p SocialConfigPatch) IsEmpty() bool {
	return p == SocialConfigPatch{}
}

// Event is an organizer's event. Guests reach it through its slug.
type Event struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CoverKey    string       `json:"cover_key,omitempty"`
	StartsAt    *time.Time   `json:"starts_at,omitempty"`
	Social      SocialConfig `json:"social"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsOwner reports whether userID owns the event.
func (e *Event) IsOwner(userID string) bool {
	return userID != "" && e.OwnerID == userID
}

// Mission is a photo prompt ("take a photo with the bride") that guests can tag uploads with.
type Mission struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists events and missions.
type Repository interface {
	// Create inserts e. Returns ErrSlugTaken when e.Slug is in use.
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	GetBySlug(ctx context.Context, slug string) (*Event, error)
	// ListByOwner returns the organizer's events, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Event, error)
	// Update saves name, description, cover key and start time.
	Update(ctx context.Context, e *Event) error
	UpdateSocialConfig(ctx context.Context, id string, cfg SocialConfig) error
	// Delete removes the event. Postgres cascades to photos, comments, reactions and missions.
	Delete(ctx context.Context, id string) error

	CreateMission(ctx context.Context, m *Mission) error
	// ListMissions returns an event's missions, oldest first.
	ListMissions(ctx context.Context, eventID string) ([]*Mission, error)
	GetMission(ctx context.Context, id string) (*Mission, error)
}
