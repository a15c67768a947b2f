package event

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
	mu       sync.RWMutex
	events   map[string]*Event
	bySlug   map[string]string
	missions map[string]*Mission
}

// NewInMemoryRepository creates an empty in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events:   make(map[string]*Event),
		bySlug:   make(map[string]string),
		missions: make(map[string]*Mission),
	}
}

func copyEvent(e *Event) *Event {
	out := *e
	if e.StartsAt != nil {
		t := *e.StartsAt
		out.StartsAt = &t
	}
	return &out
}

// Create implements Repository.
func (r *InMemoryRepository) Create(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[e.Slug]; exists {
		return ErrSlugTaken
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt

	r.events[e.ID] = copyEvent(e)
	r.bySlug[e.Slug] = e.ID
	return nil
}

// GetByID implements Repository.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return copyEvent(e), nil
}

// GetBySlug implements Repository.
func (r *InMemoryRepository) GetBySlug(_ context.Context, slug string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySlug[slug]
	if !ok {
		return nil, ErrEventNotFound
	}
	return copyEvent(r.events[id]), nil
}

// ListByOwner implements Repository.
func (r *InMemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Event
	for _, e := range r.events {
		if e.OwnerID == ownerID {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update implements Repository.
func (r *InMemoryRepository) Update(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[e.ID]
	if !ok {
		return ErrEventNotFound
	}
	existing.Name = e.Name
	existing.Description = e.Description
	existing.CoverKey = e.CoverKey
	existing.StartsAt = nil
	if e.StartsAt != nil {
		t := *e.StartsAt
		existing.StartsAt = &t
	}
	existing.UpdatedAt = time.Now().UTC()
	e.UpdatedAt = existing.UpdatedAt
	return nil
}

// UpdateSocialConfig implements Repository.
func (r *InMemoryRepository) UpdateSocialConfig(_ context.Context, id string, cfg SocialConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[id]
	if !ok {
		return ErrEventNotFound
	}
	existing.Social = cfg
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete implements Repository. Missions are removed with the event.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return ErrEventNotFound
	}
	delete(r.bySlug, e.Slug)
	delete(r.events, id)
	for mid, m := range r.missions {
		if m.EventID == id {
			delete(r.missions, mid)
		}
	}
	return nil
}

// CreateMission implements Repository.
func (r *InMemoryRepository) CreateMission(_ context.Context, m *Mission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[m.EventID]; !ok {
		return ErrEventNotFound
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	stored := *m
	r.missions[m.ID] = &stored
	return nil
}

// ListMissions implements Repository.
func (r *InMemoryRepository) ListMissions(_ context.Context, eventID string) ([]*Mission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Mission
	for _, m := range r.missions {
		if m.EventID == eventID {
			mc := *m
			out = append(out, &mc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetMission implements Repository.
func (r *InMemoryRepository) GetMission(_ context.Context, id string) (*Mission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.missions[id]
	if !ok {
		return nil, ErrMissionNotFound
	}
	mc := *m
	return &mc, nil
}
