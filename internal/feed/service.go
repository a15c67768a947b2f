package feed

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
	"github.com/yusufkarademir/etkinlikqr/internal/tracing"
)

// Default look-back windows used when a client has no watermark yet.
const (
	LiveWindow      = 30 * time.Minute
	SlideshowWindow = 2 * time.Minute
)

// DeltaOverlap is subtracted from a client watermark before querying. A write that
// stamped its time before the previous ServerTime but committed after that query
// still falls inside the next one. Merge drops the repeats.
const DeltaOverlap = 5 * time.Second

// Query selects a delta.
type Query struct {
	// Since is the client's watermark. nil means "the last Window".
	Since *time.Time
	// Window defaults to LiveWindow.
	Window time.Duration
	// PhotosOnly restricts the delta to photos (slideshow).
	PhotosOnly bool
	// Limit caps the merged result; <= 0 uses SocialFeedCap or PhotoFeedCap.
	Limit int
}

// Feed is the answer to a delta query.
type Feed struct {
	Panic bool   `json:"panic"`
	Items []Item `json:"items"`
	// ServerTime is the server clock at query time; clients send it back as the
	// next Since.
	ServerTime time.Time `json:"server_time"`
	Since      time.Time `json:"since"`
}

// Service answers delta queries against the content repositories.
type Service struct {
	events    event.Repository
	photos    photo.Repository
	comments  comment.Repository
	reactions reaction.Repository
	now       func() time.Time
}

// NewService creates a Service.
func NewService(events event.Repository, photos photo.Repository, comments comment.Repository, reactions reaction.Repository) *Service {
	return &Service{
		events:    events,
		photos:    photos,
		comments:  comments,
		reactions: reactions,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the server clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetFeed returns the content of the event behind slug that became visible after
// q.Since, less DeltaOverlap. Photos count when created or re-approved after that
// point; comments and reactions when created after it. A panicking event yields no
// items.
func (s *Service) GetFeed(ctx context.Context, slug string, q Query) (_ *Feed, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "feed.GetFeed",
		attribute.String("event.slug", slug),
		attribute.Bool("feed.photos_only", q.PhotosOnly),
	)
	defer func() { endSpan(err) }()

	ev, err := s.events.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	serverTime := s.now()
	window := q.Window
	if window <= 0 {
		window = LiveWindow
	}
	since := serverTime.Add(-window)
	from := since
	if q.Since != nil {
		since = q.Since.UTC()
		from = since.Add(-DeltaOverlap)
	}

	result := &Feed{Items: []Item{}, ServerTime: serverTime, Since: since}
	if ev.Social.PanicMode {
		result.Panic = true
		return result, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = SocialFeedCap
		if q.PhotosOnly {
			limit = PhotoFeedCap
		}
	}

	var photos []*photo.Photo
	var comments []*comment.Comment
	var reactions []*reaction.Reaction

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		photos, err = s.photos.ListChangedSince(gctx, ev.ID, from, limit)
		if err != nil {
			return fmt.Errorf("photo delta: %w", err)
		}
		return nil
	})
	if !q.PhotosOnly && ev.Social.CommentsEnabled {
		g.Go(func() error {
			var err error
			comments, err = s.comments.ListApprovedSince(gctx, ev.ID, from, limit)
			if err != nil {
				return fmt.Errorf("comment delta: %w", err)
			}
			return nil
		})
	}
	if !q.PhotosOnly && ev.Social.ReactionsEnabled {
		g.Go(func() error {
			var err error
			reactions, err = s.reactions.ListSince(gctx, ev.ID, from, limit)
			if err != nil {
				return fmt.Errorf("reaction delta: %w", err)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	delta := make([]Item, 0, len(photos)+len(comments)+len(reactions))
	for _, p := range photos {
		delta = append(delta, NewPhotoItem(p))
	}
	for _, c := range comments {
		delta = append(delta, NewCommentItem(c))
	}
	for _, r := range reactions {
		delta = append(delta, NewReactionItem(r))
	}
	result.Items = Merge(nil, delta, limit)
	return result, nil
}
