// Package identity defines the two kinds of actors in the system. Every operation
// that mutates content takes its actor explicitly as one of these values.
package identity

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrMissingGuestToken is returned when a guest request carries no token.
	ErrMissingGuestToken = errors.New("guest token is required")

	// ErrInvalidGuestToken is returned when a guest token is not a UUID.
	ErrInvalidGuestToken = errors.New("guest token is malformed")

	// ErrMissingOrganizer is returned when an organizer capability has no user ID.
	ErrMissingOrganizer = errors.New("organizer identity is required")
)

// Organizer is the capability of an authenticated event owner. The API builds it from
// a validated bearer token; domain code never reads identity from ambient state.
type Organizer struct {
	UserID string
}

// NewOrganizer wraps an authenticated user ID.
func NewOrganizer(userID string) (Organizer, error) {
	if strings.TrimSpace(userID) == "" {
		return Organizer{}, ErrMissingOrganizer
	}
	return Organizer{UserID: userID}, nil
}

// Owns reports whether the organizer is the given owner.
func (o Organizer) Owns(ownerID string) bool {
	return o.UserID != "" && o.UserID == ownerID
}

// GuestToken is the anonymous identifier a guest's browser generates once and
// persists locally. It attributes comments and reactions; it is not a security boundary.
type GuestToken string

// ParseGuestToken validates a client-supplied token and returns it in canonical form.
func ParseGuestToken(raw string) (GuestToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingGuestToken
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidGuestToken
	}
	return GuestToken(id.String()), nil
}

// NewGuestToken generates a fresh token, as a guest client does on first visit.
func NewGuestToken() GuestToken {
	return GuestToken(uuid.New().String())
}

func (t GuestToken) String() string {
	return string(t)
}
