package photo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; callers always receive copies.
type InMemoryRepository struct {
	mu     sync.RWMutex
	photos map[string]*Photo
}

// NewInMemoryRepository creates an empty in-memory photo repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{photos: make(map[string]*Photo)}
}

func copyPhoto(p *Photo) *Photo {
	out := *p
	if p.MissionID != nil {
		id := *p.MissionID
		out.MissionID = &id
	}
	return &out
}

// Create implements Repository.
func (r *InMemoryRepository) Create(_ context.Context, p *Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	r.photos[p.ID] = copyPhoto(p)
	return nil
}

// GetByID implements Repository.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.photos[id]
	if !ok {
		return nil, ErrPhotoNotFound
	}
	return copyPhoto(p), nil
}

// GetMany implements Repository.
func (r *InMemoryRepository) GetMany(_ context.Context, ids []string) ([]*Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var out []*Photo
	for _, id := range ids {
		if p, ok := r.photos[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, copyPhoto(p))
		}
	}
	return out, nil
}

// ListByEvent implements Repository.
func (r *InMemoryRepository) ListByEvent(_ context.Context, eventID string, status Status, limit int) ([]*Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Photo
	for _, p := range r.photos {
		if p.EventID == eventID && (status == "" || p.Status == status) {
			out = append(out, copyPhoto(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return truncate(out, limit), nil
}

// Approve implements Repository.
func (r *InMemoryRepository) Approve(_ context.Context, ids []string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		p, ok := r.photos[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		p.Status = StatusApproved
		p.UpdatedAt = now
		n++
	}
	return n, nil
}

// Delete implements Repository.
func (r *InMemoryRepository) Delete(_ context.Context, ids []string) ([]*Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Photo
	for _, id := range ids {
		if p, ok := r.photos[id]; ok {
			out = append(out, p)
			delete(r.photos, id)
		}
	}
	return out, nil
}

// DeleteByEvent implements Repository.
func (r *InMemoryRepository) DeleteByEvent(_ context.Context, eventID string) ([]*Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Photo
	for id, p := range r.photos {
		if p.EventID == eventID {
			out = append(out, p)
			delete(r.photos, id)
		}
	}
	return out, nil
}

// ListChangedSince implements Repository.
func (r *InMemoryRepository) ListChangedSince(_ context.Context, eventID string, since time.Time, limit int) ([]*Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Photo
	for _, p := range r.photos {
		if p.EventID != eventID || p.Status != StatusApproved {
			continue
		}
		if p.CreatedAt.After(since) || p.UpdatedAt.After(since) {
			out = append(out, copyPhoto(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].FeedTime(), out[j].FeedTime(), out[i].ID, out[j].ID)
	})
	return truncate(out, limit), nil
}

// IncrementDownloads implements Repository.
func (r *InMemoryRepository) IncrementDownloads(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.photos[id]
	if !ok {
		return ErrPhotoNotFound
	}
	p.Downloads++
	return nil
}

func newerFirst(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.After(b)
}

func truncate(photos []*Photo, limit int) []*Photo {
	if limit > 0 && len(photos) > limit {
		return photos[:limit]
	}
	return photos
}
