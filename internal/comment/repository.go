package comment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	comments map[string]*Comment
}

// NewInMemoryRepository creates an empty in-memory comment repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{comments: make(map[string]*Comment)}
}

// Create implements Repository.
func (r *InMemoryRepository) Create(_ context.Context, c *Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	stored := *c
	r.comments[c.ID] = &stored
	return nil
}

// GetMany implements Repository.
func (r *InMemoryRepository) GetMany(_ context.Context, ids []string) ([]*Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var out []*Comment
	for _, id := range ids {
		if c, ok := r.comments[id]; ok && !seen[id] {
			seen[id] = true
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

// Approve implements Repository.
func (r *InMemoryRepository) Approve(_ context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if c, ok := r.comments[id]; ok && !seen[id] {
			seen[id] = true
			c.Status = StatusApproved
			n++
		}
	}
	return n, nil
}

// Delete implements Repository.
func (r *InMemoryRepository) Delete(_ context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := r.comments[id]; ok {
			delete(r.comments, id)
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) filter(match func(*Comment) bool) []*Comment {
	var out []*Comment
	for _, c := range r.comments {
		if match(c) {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out
}

func sortOldestFirst(cs []*Comment) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID < cs[j].ID
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

// ListByPhoto implements Repository.
func (r *InMemoryRepository) ListByPhoto(_ context.Context, photoID string, approvedOnly bool) ([]*Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.filter(func(c *Comment) bool {
		return c.PhotoID == photoID && (!approvedOnly || c.Status == StatusApproved)
	})
	sortOldestFirst(out)
	return out, nil
}

// ListPending implements Repository.
func (r *InMemoryRepository) ListPending(_ context.Context, eventID string) ([]*Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.filter(func(c *Comment) bool {
		return c.EventID == eventID && c.Status == StatusPending
	})
	sortOldestFirst(out)
	return out, nil
}

// ListApprovedSince implements Repository.
func (r *InMemoryRepository) ListApprovedSince(_ context.Context, eventID string, since time.Time, limit int) ([]*Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.filter(func(c *Comment) bool {
		return c.EventID == eventID && c.Status == StatusApproved && c.CreatedAt.After(since)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteByEvent implements Repository.
func (r *InMemoryRepository) DeleteByEvent(_ context.Context, eventID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, c := range r.comments {
		if c.EventID == eventID {
			delete(r.comments, id)
			n++
		}
	}
	return n, nil
}

// DeleteByPhotos removes the comments of the given photos. Postgres does this through
// ON DELETE CASCADE; the in-memory store needs it called explicitly.
func (r *InMemoryRepository) DeleteByPhotos(_ context.Context, photoIDs []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]bool, len(photoIDs))
	for _, id := range photoIDs {
		set[id] = true
	}
	n := 0
	for id, c := range r.comments {
		if set[c.PhotoID] {
			delete(r.comments, id)
			n++
		}
	}
	return n
}
