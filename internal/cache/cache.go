// Package cache holds the public gallery cache keyed by event slug.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yusufkarademir/etkinlikqr/internal/photo"
)

// DefaultTTL bounds how stale a cached gallery can get when an invalidation is lost.
const DefaultTTL = 60 * time.Second

// GalleryCache caches the approved photos of an event.
type GalleryCache interface {
	// Get returns the cached gallery; ok is false on a miss.
	Get(ctx context.Context, slug string) (photos []*photo.Photo, ok bool, err error)
	Set(ctx context.Context, slug string, photos []*photo.Photo) error
	Invalidate(ctx context.Context, slug string) error
}

// RedisGalleryCache stores CBOR-encoded galleries in Redis, shared by all replicas.
type RedisGalleryCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisGalleryCache creates a Redis-backed cache. ttl <= 0 uses DefaultTTL.
func NewRedisGalleryCache(client redis.Cmdable, ttl time.Duration) *RedisGalleryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGalleryCache{client: client, prefix: "gallery:", ttl: ttl}
}

// cachedPhoto carries the fields the public gallery serves.
type cachedPhoto struct {
	ID        string          `cbor:"1,keyasint"`
	EventID   string          `cbor:"2,keyasint"`
	URL       string          `cbor:"3,keyasint"`
	MediaKind photo.MediaKind `cbor:"4,keyasint"`
	MissionID *string         `cbor:"5,keyasint,omitempty"`
	Downloads int             `cbor:"6,keyasint"`
	CreatedAt time.Time       `cbor:"7,keyasint"`
	UpdatedAt time.Time       `cbor:"8,keyasint"`
}

// Get implements GalleryCache.
func (c *RedisGalleryCache) Get(ctx context.Context, slug string) ([]*photo.Photo, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+slug).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get gallery cache: %w", err)
	}

	var entries []cachedPhoto
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("decode gallery cache: %w", err)
	}
	photos := make([]*photo.Photo, len(entries))
	for i, e := range entries {
		photos[i] = &photo.Photo{
			ID:        e.ID,
			EventID:   e.EventID,
			URL:       e.URL,
			MediaKind: e.MediaKind,
			Status:    photo.StatusApproved,
			MissionID: e.MissionID,
			Downloads: e.Downloads,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		}
	}
	return photos, true, nil
}

// Set implements GalleryCache.
func (c *RedisGalleryCache) Set(ctx context.Context, slug string, photos []*photo.Photo) error {
	entries := make([]cachedPhoto, len(photos))
	for i, p := range photos {
		entries[i] = cachedPhoto{
			ID:        p.ID,
			EventID:   p.EventID,
			URL:       p.URL,
			MediaKind: p.MediaKind,
			MissionID: p.MissionID,
			Downloads: p.Downloads,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
	}
	data, err := cbor.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode gallery cache: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+slug, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set gallery cache: %w", err)
	}
	return nil
}

// Invalidate implements GalleryCache.
func (c *RedisGalleryCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, c.prefix+slug).Err(); err != nil {
		return fmt.Errorf("invalidate gallery cache: %w", err)
	}
	return nil
}

type memoryEntry struct {
	photos  []*photo.Photo
	expires time.Time
}

// MemoryGalleryCache is a process-local GalleryCache.
type MemoryGalleryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryGalleryCache creates an in-memory cache. ttl <= 0 uses DefaultTTL.
func NewMemoryGalleryCache(ttl time.Duration) *MemoryGalleryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGalleryCache{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func copyPhotos(in []*photo.Photo) []*photo.Photo {
	out := make([]*photo.Photo, len(in))
	for i, p := range in {
		pc := *p
		out[i] = &pc
	}
	return out
}

// Get implements GalleryCache.
func (c *MemoryGalleryCache) Get(_ context.Context, slug string) ([]*photo.Photo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[slug]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, slug)
		return nil, false, nil
	}
	return copyPhotos(e.photos), true, nil
}

// Set implements GalleryCache.
func (c *MemoryGalleryCache) Set(_ context.Context, slug string, photos []*photo.Photo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[slug] = memoryEntry{photos: copyPhotos(photos), expires: c.now().Add(c.ttl)}
	return nil
}

// Invalidate implements GalleryCache.
func (c *MemoryGalleryCache) Invalidate(_ context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, slug)
	return nil
}
