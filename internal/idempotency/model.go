// Package idempotency stores the responses of retried guest submissions so that a
// flaky venue network resending an upload or comment does not create duplicates.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Record status values.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned when no record exists for a key.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when storing a key that is already recorded.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when a key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum accepted Idempotency-Key length.
const MaxKeyLength = 64

// DefaultExpiry is how long completed responses are replayable.
const DefaultExpiry = 24 * time.Hour

// Record is a completed response cached under a client-supplied key.
// Key is already scoped to the caller (see ScopedKey).
type Record struct {
	Key                string    `json:"key" cbor:"1,keyasint"`
	Method             string    `json:"method" cbor:"2,keyasint"`
	Route              string    `json:"route" cbor:"3,keyasint"`
	CreatedAt          time.Time `json:"created_at" cbor:"4,keyasint"`
	ResponseHash       string    `json:"response_hash" cbor:"5,keyasint"`
	Status             string    `json:"status" cbor:"6,keyasint"`
	ResponseBody       string    `json:"response_body" cbor:"7,keyasint"`
	ResponseStatusCode int       `json:"response_status_code" cbor:"8,keyasint"`
	ContentType        string    `json:"content_type,omitempty" cbor:"9,keyasint,omitempty"`
}

// ValidateKey checks that a client-supplied key is non-empty and short enough.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ScopedKey namespaces a client key by the caller (guest token or organizer ID) and
// route, so two guests picking the same key never see each other's responses.
func ScopedKey(scope, route, key string) string {
	return scope + "|" + route + "|" + key
}

// ComputeResponseHash returns the SHA-256 hex digest of a response body.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository persists idempotency records.
type Repository interface {
	// Get returns the record for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// Store saves record; ErrKeyExists if the key is taken.
	Store(ctx context.Context, record *Record) error

	// DeleteOlderThan removes records created before now-age and returns the count.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
