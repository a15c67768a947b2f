package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

// Sanitizer cleans image bytes before they are stored.
type Sanitizer interface {
	Sanitize(ctx context.Context, data []byte, contentType string) ([]byte, string)
}

// ServiceConfig holds configuration for the upload service.
type ServiceConfig struct {
	// MaxSizeMB bounds uploads; default 50.
	MaxSizeMB int
	// URLExpiry bounds presigned URLs; default 5 minutes.
	URLExpiry time.Duration
}

// Object is a stored media blob.
type Object struct {
	Key         string          `json:"key"`
	URL         string          `json:"url"`
	ContentType string          `json:"content_type"`
	Size        int64           `json:"size"`
	Kind        photo.MediaKind `json:"media_type"`
}

// SignedURLResponse is a presigned direct-upload target.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service validates uploads, sanitizes images and writes them to a Store.
type Service struct {
	store        Store
	sanitizer    Sanitizer
	maxSizeBytes int64
	urlExpiry    time.Duration
	timeNow      func() time.Time
}

// NewService creates an upload service. sanitizer may be nil.
func NewService(store Store, sanitizer Sanitizer, cfg ServiceConfig) *Service {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 5 * time.Minute
	}
	return &Service{
		store:        store,
		sanitizer:    sanitizer,
		maxSizeBytes: int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:    cfg.URLExpiry,
		timeNow:      time.Now,
	}
}

// Store returns the underlying object store.
func (s *Service) Store() Store {
	return s.store
}

// MaxSizeBytes returns the upload size limit.
func (s *Service) MaxSizeBytes() int64 {
	return s.maxSizeBytes
}

func (s *Service) validate(contentType string, size int64, allowed []string) (string, error) {
	validated, err := validate.MIMEType(contentType, allowed)
	if err != nil {
		return "", ErrUnsupportedType
	}
	if err := validate.FileSize(size, s.maxSizeBytes); err != nil {
		if errors.Is(err, validate.ErrFileEmpty) {
			return "", ErrEmptyFile
		}
		return "", ErrFileTooLarge
	}
	return validated, nil
}

// readAll reads at most maxSizeBytes so a lying Content-Length cannot exhaust memory.
func (s *Service) readAll(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, s.maxSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSizeBytes {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return data, nil
}

func (s *Service) put(ctx context.Context, key, contentType string, body io.Reader, size int64, allowed []string) (*Object, error) {
	contentType, err := s.validate(contentType, size, allowed)
	if err != nil {
		return nil, err
	}
	data, err := s.readAll(body)
	if err != nil {
		return nil, err
	}
	if s.sanitizer != nil && !validate.IsVideo(contentType) {
		data, contentType = s.sanitizer.Sanitize(ctx, data, contentType)
	}

	if err := s.store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}
	return &Object{
		Key:         key,
		URL:         s.store.PublicURL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
		Kind:        MediaKindFor(contentType),
	}, nil
}

// Upload stores a guest photo or video under the event's prefix.
func (s *Service) Upload(ctx context.Context, eventID, filename, contentType string, body io.Reader, size int64) (*Object, error) {
	return s.put(ctx, ObjectKey(eventID, filename, s.timeNow()), contentType, body, size, validate.AllowedMediaTypes)
}

// UploadCover stores an event cover image.
func (s *Service) UploadCover(ctx context.Context, eventID, filename, contentType string, body io.Reader, size int64) (*Object, error) {
	return s.put(ctx, CoverKey(eventID, filename, s.timeNow()), contentType, body, size, validate.AllowedImageTypes)
}

// Presign returns a URL the browser can PUT the file to directly. Presigned uploads
// bypass the sanitizer.
func (s *Service) Presign(ctx context.Context, eventID, filename, contentType string, size int64) (*SignedURLResponse, error) {
	contentType, err := s.validate(contentType, size, validate.AllowedMediaTypes)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	key := ObjectKey(eventID, filename, now)
	url, err := s.store.PresignPut(ctx, key, contentType, size, s.urlExpiry)
	if err != nil {
		return nil, err
	}
	return &SignedURLResponse{URL: url, Key: key, ExpiresAt: now.Add(s.urlExpiry)}, nil
}

// Complete verifies a presigned upload landed and returns its description.
func (s *Service) Complete(ctx context.Context, eventID, key string) (*Object, error) {
	if !IsEventUploadKey(eventID, key) {
		return nil, ErrInvalidKey
	}
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	contentType, err := s.validate(info.ContentType, info.Size, validate.AllowedMediaTypes)
	if err != nil {
		return nil, err
	}
	return &Object{
		Key:         key,
		URL:         s.store.PublicURL(key),
		ContentType: contentType,
		Size:        info.Size,
		Kind:        MediaKindFor(contentType),
	}, nil
}

// DeleteObjects implements the moderation gate's blob store.
func (s *Service) DeleteObjects(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return s.store.DeleteObjects(ctx, keys)
}
