// Package reaction stores guest emoji reactions on photos.
package reaction

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnsupportedEmoji is returned for emoji outside AllowedEmoji.
var ErrUnsupportedEmoji = errors.New("unsupported emoji")

// AllowedEmoji is the fixed reaction palette, in display order.
var AllowedEmoji = []string{"\u2764\ufe0f", "😂", "😍", "🔥", "👏", "🎉"}

// NormalizeEmoji returns the canonical palette form of emoji. A heart sent without
// the emoji presentation selector (U+FE0F) is accepted as the same reaction.
func NormalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	for _, allowed := range AllowedEmoji {
		if emoji == allowed || emoji+"\ufe0f" == allowed {
			return allowed, nil
		}
	}
	return "", ErrUnsupportedEmoji
}

// Reaction is one guest's emoji on one photo. Reactions are not moderated.
type Reaction struct {
	ID          string    `json:"id"`
	PhotoID     string    `json:"photo_id"`
	EventID     string    `json:"event_id"`
	Emoji       string    `json:"emoji"`
	AuthorToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Count is the number of reactions with one emoji.
type Count struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Summary is the per-emoji reaction count of a photo, in AllowedEmoji order.
// Emoji with no reactions are omitted.
type Summary []Count

// Repository persists reactions.
type Repository interface {
	// Toggle removes the (photo, author, emoji) reaction if present and creates it
	// otherwise. added reports which happened; the created reaction is returned when added.
	Toggle(ctx context.Context, photoID, eventID, authorToken, emoji string) (added bool, r *Reaction, err error)
	// ListSince returns reactions created after since, newest first.
	ListSince(ctx context.Context, eventID string, since time.Time, limit int) ([]*Reaction, error)
	Summary(ctx context.Context, photoID string) (Summary, error)
	DeleteByEvent(ctx context.Context, eventID string) (int, error)
}

func summarize(counts map[string]int) Summary {
	out := Summary{}
	for _, e := range AllowedEmoji {
		if n := counts[e]; n > 0 {
			out = append(out, Count{Emoji: e, Count: n})
		}
	}
	return out
}
