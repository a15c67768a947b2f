package reaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type reactionKey struct {
	photoID, author, emoji string
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via Mutex; Toggle is atomic per call.
type InMemoryRepository struct {
	mu        sync.Mutex
	reactions map[reactionKey]*Reaction
	now       func() time.Time
}

// NewInMemoryRepository creates an empty in-memory reaction repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		reactions: make(map[reactionKey]*Reaction),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Toggle implements Repository.
func (r *InMemoryRepository) Toggle(_ context.Context, photoID, eventID, authorToken, emoji string) (bool, *Reaction, error) {
	emoji, err := NormalizeEmoji(emoji)
	if err != nil {
		return false, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := reactionKey{photoID: photoID, author: authorToken, emoji: emoji}
	if _, exists := r.reactions[key]; exists {
		delete(r.reactions, key)
		return false, nil, nil
	}

	created := &Reaction{
		ID:          uuid.New().String(),
		PhotoID:     photoID,
		EventID:     eventID,
		Emoji:       emoji,
		AuthorToken: authorToken,
		CreatedAt:   r.now(),
	}
	r.reactions[key] = created
	out := *created
	return true, &out, nil
}

// ListSince implements Repository.
func (r *InMemoryRepository) ListSince(_ context.Context, eventID string, since time.Time, limit int) ([]*Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Reaction
	for _, re := range r.reactions {
		if re.EventID == eventID && re.CreatedAt.After(since) {
			rc := *re
			out = append(out, &rc)
		}
	}
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

// Summary implements Repository.
func (r *InMemoryRepository) Summary(_ context.Context, photoID string) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for key := range r.reactions {
		if key.photoID == photoID {
			counts[key.emoji]++
		}
	}
	return summarize(counts), nil
}

// DeleteByEvent implements Repository.
func (r *InMemoryRepository) DeleteByEvent(_ context.Context, eventID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, re := range r.reactions {
		if re.EventID == eventID {
			delete(r.reactions, key)
			n++
		}
	}
	return n, nil
}

// DeleteByPhotos removes the reactions of the given photos, mirroring the Postgres cascade.
func (r *InMemoryRepository) DeleteByPhotos(_ context.Context, photoIDs []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]bool, len(photoIDs))
	for _, id := range photoIDs {
		set[id] = true
	}
	n := 0
	for key := range r.reactions {
		if set[key.photoID] {
			delete(r.reactions, key)
			n++
		}
	}
	return n
}
