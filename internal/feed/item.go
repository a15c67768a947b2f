// Package feed builds the live social wall and slideshow: delta queries over approved
// content, the merge of deltas into a capped display list, and the client-side poller.
package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
)

// Kind discriminates feed items.
type Kind string

// Item kinds.
const (
	KindPhoto    Kind = "photo"
	KindComment  Kind = "comment"
	KindReaction Kind = "reaction"
)

// ErrInvalidItem is returned by Validate when the payload does not match the kind.
var ErrInvalidItem = errors.New("invalid feed item")

// Item is one entry of a feed. Exactly one payload, the one named by Kind, is set.
type Item struct {
	Kind      Kind               `json:"type"`
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Photo     *photo.Photo       `json:"photo,omitempty"`
	Comment   *comment.Comment   `json:"comment,omitempty"`
	Reaction  *reaction.Reaction `json:"reaction,omitempty"`
}

// NewPhotoItem positions p at its FeedTime so a re-approved photo moves to the top.
func NewPhotoItem(p *photo.Photo) Item {
	return Item{Kind: KindPhoto, ID: p.ID, Timestamp: p.FeedTime(), Photo: p}
}

// NewCommentItem positions c at its creation time.
func NewCommentItem(c *comment.Comment) Item {
	return Item{Kind: KindComment, ID: c.ID, Timestamp: c.CreatedAt, Comment: c}
}

// NewReactionItem positions r at its creation time.
func NewReactionItem(r *reaction.Reaction) Item {
	return Item{Kind: KindReaction, ID: r.ID, Timestamp: r.CreatedAt, Reaction: r}
}

type itemKey struct {
	kind Kind
	id   string
}

func (it Item) key() itemKey {
	return itemKey{kind: it.Kind, id: it.ID}
}

// Validate checks that the item carries exactly the payload its kind names.
func (it Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	payloads := 0
	for _, set := range []bool{it.Photo != nil, it.Comment != nil, it.Reaction != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("%w: %d payloads", ErrInvalidItem, payloads)
	}

	switch it.Kind {
	case KindPhoto:
		if it.Photo == nil {
			return fmt.Errorf("%w: photo item without photo", ErrInvalidItem)
		}
	case KindComment:
		if it.Comment == nil {
			return fmt.Errorf("%w: comment item without comment", ErrInvalidItem)
		}
	case KindReaction:
		if it.Reaction == nil {
			return fmt.Errorf("%w: reaction item without reaction", ErrInvalidItem)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, it.Kind)
	}
	return nil
}
