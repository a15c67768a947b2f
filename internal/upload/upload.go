// Package upload stores guest media in S3-compatible object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

// Upload errors.
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidKey      = errors.New("object key does not belong to this event")
	ErrObjectNotFound  = errors.New("object not found")
)

// MaxDeleteBatch is the S3 DeleteObjects limit per request.
const MaxDeleteBatch = 1000

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// Store is the object storage used for media blobs.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// Stat returns ErrObjectNotFound for a missing key.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// DeleteObjects removes keys and returns those that could not be deleted.
	// Missing keys count as deleted.
	DeleteObjects(ctx context.Context, keys []string) (failed []string, err error)
	// PresignPut returns a URL that accepts one PUT of the given type and size.
	PresignPut(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (string, error)
	PublicURL(key string) string
}

// EventPrefix is the key prefix of all objects of an event.
func EventPrefix(eventID string) string {
	return "events/" + sanitizePathComponent(eventID) + "/"
}

// ObjectKey returns the key of a guest upload: events/{eventId}/{unixMillis}-{filename}.
func ObjectKey(eventID, filename string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s", EventPrefix(eventID), now.UnixMilli(), SanitizeFilename(filename))
}

// CoverKey returns the key of an event cover image.
func CoverKey(eventID, filename string, now time.Time) string {
	return fmt.Sprintf("%scover/%d-%s", EventPrefix(eventID), now.UnixMilli(), SanitizeFilename(filename))
}

// IsEventUploadKey reports whether key is a guest upload key of eventID.
func IsEventUploadKey(eventID, key string) bool {
	rest, ok := strings.CutPrefix(key, EventPrefix(eventID))
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// maxFilenameLength bounds the sanitized filename in bytes.
const maxFilenameLength = 100

// SanitizeFilename keeps the base name of a client-supplied filename, replacing
// anything outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.TrimLeft(b.String(), "._")
	if len(out) > maxFilenameLength {
		out = out[len(out)-maxFilenameLength:]
	}
	if out == "" {
		return "file"
	}
	return out
}

// sanitizePathComponent removes potentially dangerous characters from path components.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// MediaKindFor maps a validated content type to the stored media kind.
func MediaKindFor(contentType string) photo.MediaKind {
	if validate.IsVideo(contentType) {
		return photo.MediaVideo
	}
	return photo.MediaImage
}
