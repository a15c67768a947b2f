// Package moderation is the organizer-only gate over guest content: approving and
// rejecting photos and comments, and changing an event's social configuration.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/audit"
	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/identity"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
)

var (
	// ErrForbidden is returned when the actor does not own an affected event.
	ErrForbidden = errors.New("not allowed to moderate this content")
	// ErrNotFound is returned when none of the given ids exist.
	ErrNotFound = errors.New("no matching content")
	// ErrEmptyBatch is returned for a call without ids.
	ErrEmptyBatch = errors.New("no ids given")
	// ErrEmptyPatch is returned for a configuration update that changes nothing.
	ErrEmptyPatch = errors.New("no settings given")
)

// blobCleanupTimeout bounds object storage deletes, which outlive the request.
const blobCleanupTimeout = 30 * time.Second

// BlobStore deletes media objects and reports the keys it could not delete.
type BlobStore interface {
	DeleteObjects(ctx context.Context, keys []string) (failed []string, err error)
}

// OrphanQueue remembers blob keys whose deletion must be retried.
type OrphanQueue interface {
	Push(ctx context.Context, keys ...string) error
}

// GalleryCache drops the cached public gallery of an event.
type GalleryCache interface {
	Invalidate(ctx context.Context, slug string) error
}

// Publisher pushes changes to connected live walls.
type Publisher interface {
	Publish(slug string, items []feed.Item)
	PublishPanic(slug string, on bool)
}

// photoCascader is implemented by in-memory comment and reaction stores; Postgres
// removes dependents through ON DELETE CASCADE.
type photoCascader interface {
	DeleteByPhotos(ctx context.Context, photoIDs []string) int
}

// Deps are the collaborators of a Gate. Blobs, Orphans, Cache, Publisher, Metrics
// and Logger are optional.
type Deps struct {
	Events    event.Repository
	Photos    photo.Repository
	Comments  comment.Repository
	Reactions reaction.Repository
	Audit     audit.Repository

	Blobs     BlobStore
	Orphans   OrphanQueue
	Cache     GalleryCache
	Publisher Publisher
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Gate applies organizer decisions. Every method takes the acting organizer
// explicitly and checks that it owns each affected event before mutating anything.
type Gate struct {
	Deps
	now func() time.Time
}

// NewGate creates a Gate.
func NewGate(d Deps) *Gate {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Gate{Deps: d, now: func() time.Time { return time.Now().UTC() }}
}

// Authorize loads an event and checks that actor owns it.
func (g *Gate) Authorize(ctx context.Context, eventID string, actor identity.Organizer) (*event.Event, error) {
	ev, err := g.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(ev.OwnerID) {
		return nil, ErrForbidden
	}
	return ev, nil
}

// ownedEvents loads the events of eventIDs and fails with ErrForbidden if actor
// does not own one of them. Events deleted in the meantime are left out.
func (g *Gate) ownedEvents(ctx context.Context, eventIDs []string, actor identity.Organizer, action string, count int) (map[string]*event.Event, error) {
	events := make(map[string]*event.Event, len(eventIDs))
	for _, id := range eventIDs {
		if _, ok := events[id]; ok {
			continue
		}
		ev, err := g.Events.GetByID(ctx, id)
		if errors.Is(err, event.ErrEventNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load event %s: %w", id, err)
		}
		if !actor.Owns(ev.OwnerID) {
			g.Logger.WarnContext(ctx, "moderation denied", "event_id", ev.ID, "actor_id", actor.UserID, "action", action)
			g.record(ctx, actor, ev.ID, action, audit.OutcomeFailure, count)
			return nil, ErrForbidden
		}
		events[id] = ev
	}
	return events, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (g *Gate) resolvePhotos(ctx context.Context, ids []string, actor identity.Organizer, action string) (map[string][]*photo.Photo, map[string]*event.Event, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil, ErrEmptyBatch
	}
	photos, err := g.Photos.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load photos: %w", err)
	}
	if len(photos) == 0 {
		return nil, nil, ErrNotFound
	}

	byEvent := make(map[string][]*photo.Photo)
	eventIDs := make([]string, 0, len(photos))
	for _, p := range photos {
		byEvent[p.EventID] = append(byEvent[p.EventID], p)
		eventIDs = append(eventIDs, p.EventID)
	}
	events, err := g.ownedEvents(ctx, eventIDs, actor, action, len(photos))
	if err != nil {
		return nil, nil, err
	}
	if len(events) == 0 {
		return nil, nil, ErrNotFound
	}
	return byEvent, events, nil
}

func (g *Gate) resolveComments(ctx context.Context, ids []string, actor identity.Organizer, action string) (map[string][]*comment.Comment, map[string]*event.Event, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil, ErrEmptyBatch
	}
	comments, err := g.Comments.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load comments: %w", err)
	}
	if len(comments) == 0 {
		return nil, nil, ErrNotFound
	}

	byEvent := make(map[string][]*comment.Comment)
	eventIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		byEvent[c.EventID] = append(byEvent[c.EventID], c)
		eventIDs = append(eventIDs, c.EventID)
	}
	events, err := g.ownedEvents(ctx, eventIDs, actor, action, len(comments))
	if err != nil {
		return nil, nil, err
	}
	if len(events) == 0 {
		return nil, nil, ErrNotFound
	}
	return byEvent, events, nil
}

// ApprovePhotos marks the photos approved in one update and bumps their updated_at,
// which moves already approved photos back to the top of the live feed.
// Ids that no longer exist are skipped.
func (g *Gate) ApprovePhotos(ctx context.Context, ids []string, actor identity.Organizer) (int, error) {
	byEvent, events, err := g.resolvePhotos(ctx, ids, actor, audit.ActionApprovePhotos)
	if err != nil {
		return 0, err
	}

	now := g.now()
	var approveIDs []string
	for eventID, photos := range byEvent {
		if events[eventID] == nil {
			continue
		}
		for _, p := range photos {
			approveIDs = append(approveIDs, p.ID)
		}
	}
	n, err := g.Photos.Approve(ctx, approveIDs, now)
	if err != nil {
		return 0, fmt.Errorf("approve photos: %w", err)
	}

	for eventID, ev := range events {
		photos := byEvent[eventID]
		items := make([]feed.Item, 0, len(photos))
		for _, p := range photos {
			p.Status = photo.StatusApproved
			p.UpdatedAt = now
			items = append(items, feed.NewPhotoItem(p))
		}
		g.afterChange(ctx, ev, items)
		g.record(ctx, actor, ev.ID, audit.ActionApprovePhotos, audit.OutcomeSuccess, len(photos))
	}
	g.Metrics.observe(KindPhoto, DecisionApprove, n)
	return n, nil
}

// RejectPhotos deletes the photo records, then their blobs. Blob deletes are best
// effort; keys that fail are queued for the sweeper.
func (g *Gate) RejectPhotos(ctx context.Context, ids []string, actor identity.Organizer) (int, error) {
	byEvent, events, err := g.resolvePhotos(ctx, ids, actor, audit.ActionRejectPhotos)
	if err != nil {
		return 0, err
	}

	var deleteIDs []string
	for eventID, photos := range byEvent {
		if events[eventID] == nil {
			continue
		}
		for _, p := range photos {
			deleteIDs = append(deleteIDs, p.ID)
		}
	}
	deleted, err := g.Photos.Delete(ctx, deleteIDs)
	if err != nil {
		return 0, fmt.Errorf("delete photos: %w", err)
	}
	g.cascadePhotos(ctx, deleteIDs)

	keys := make([]string, 0, len(deleted))
	for _, p := range deleted {
		if p.ObjectKey != "" {
			keys = append(keys, p.ObjectKey)
		}
	}
	g.DiscardBlobs(ctx, keys)

	for eventID, ev := range events {
		g.afterChange(ctx, ev, nil)
		g.record(ctx, actor, ev.ID, audit.ActionRejectPhotos, audit.OutcomeSuccess, len(byEvent[eventID]))
	}
	g.Metrics.observe(KindPhoto, DecisionReject, len(deleted))
	return len(deleted), nil
}

// ApproveComments marks the comments approved. created_at is kept, so a comment
// approved late appears at its original position.
func (g *Gate) ApproveComments(ctx context.Context, ids []string, actor identity.Organizer) (int, error) {
	byEvent, events, err := g.resolveComments(ctx, ids, actor, audit.ActionApproveComments)
	if err != nil {
		return 0, err
	}

	var approveIDs []string
	for eventID, comments := range byEvent {
		if events[eventID] == nil {
			continue
		}
		for _, c := range comments {
			approveIDs = append(approveIDs, c.ID)
		}
	}
	n, err := g.Comments.Approve(ctx, approveIDs)
	if err != nil {
		return 0, fmt.Errorf("approve comments: %w", err)
	}

	for eventID, ev := range events {
		comments := byEvent[eventID]
		items := make([]feed.Item, 0, len(comments))
		for _, c := range comments {
			c.Status = comment.StatusApproved
			items = append(items, feed.NewCommentItem(c))
		}
		g.publish(ev, items)
		g.record(ctx, actor, ev.ID, audit.ActionApproveComments, audit.OutcomeSuccess, len(comments))
	}
	g.Metrics.observe(KindComment, DecisionApprove, n)
	return n, nil
}

// RejectComments deletes the comments.
func (g *Gate) RejectComments(ctx context.Context, ids []string, actor identity.Organizer) (int, error) {
	byEvent, events, err := g.resolveComments(ctx, ids, actor, audit.ActionRejectComments)
	if err != nil {
		return 0, err
	}

	var deleteIDs []string
	for eventID, comments := range byEvent {
		if events[eventID] == nil {
			continue
		}
		for _, c := range comments {
			deleteIDs = append(deleteIDs, c.ID)
		}
	}
	n, err := g.Comments.Delete(ctx, deleteIDs)
	if err != nil {
		return 0, fmt.Errorf("delete comments: %w", err)
	}

	for eventID, ev := range events {
		g.record(ctx, actor, ev.ID, audit.ActionRejectComments, audit.OutcomeSuccess, len(byEvent[eventID]))
	}
	g.Metrics.observe(KindComment, DecisionReject, n)
	return n, nil
}

// Queue is the pending content of an event.
type Queue struct {
	Photos   []*photo.Photo     `json:"photos"`
	Comments []*comment.Comment `json:"comments"`
}

// Queue returns the photos and comments awaiting a decision, oldest comments first.
func (g *Gate) Queue(ctx context.Context, eventID string, actor identity.Organizer) (*Queue, error) {
	ev, err := g.Authorize(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	photos, err := g.Photos.ListByEvent(ctx, ev.ID, photo.StatusPending, 0)
	if err != nil {
		return nil, fmt.Errorf("list pending photos: %w", err)
	}
	comments, err := g.Comments.ListPending(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list pending comments: %w", err)
	}
	if photos == nil {
		photos = []*photo.Photo{}
	}
	if comments == nil {
		comments = []*comment.Comment{}
	}
	return &Queue{Photos: photos, Comments: comments}, nil
}

// UpdateSocialConfig applies patch to the event's social configuration.
func (g *Gate) UpdateSocialConfig(ctx context.Context, eventID string, actor identity.Organizer, patch event.SocialConfigPatch) (*event.SocialConfig, error) {
	return g.updateConfig(ctx, eventID, actor, patch, audit.ActionUpdateSocialConfig)
}

// SetPanicMode hides all content from guests (on) or restores it (off).
func (g *Gate) SetPanicMode(ctx context.Context, eventID string, actor identity.Organizer, on bool) (*event.SocialConfig, error) {
	return g.updateConfig(ctx, eventID, actor, event.SocialConfigPatch{PanicMode: &on}, audit.ActionSetPanicMode)
}

func (g *Gate) updateConfig(ctx context.Context, eventID string, actor identity.Organizer, patch event.SocialConfigPatch, action string) (*event.SocialConfig, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}
	ev, err := g.Authorize(ctx, eventID, actor)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			g.record(ctx, actor, eventID, action, audit.OutcomeFailure, 0)
		}
		return nil, err
	}

	updated := ev.Social.Apply(patch)
	if err := g.Events.UpdateSocialConfig(ctx, ev.ID, updated); err != nil {
		return nil, fmt.Errorf("update social config: %w", err)
	}

	g.invalidate(ctx, ev)
	if updated.PanicMode != ev.Social.PanicMode && g.Publisher != nil {
		g.Publisher.PublishPanic(ev.Slug, updated.PanicMode)
	}
	g.record(ctx, actor, ev.ID, action, audit.OutcomeSuccess, 1)
	return &updated, nil
}

// DeleteEvent removes an event with all its content and media.
func (g *Gate) DeleteEvent(ctx context.Context, eventID string, actor identity.Organizer) error {
	ev, err := g.Authorize(ctx, eventID, actor)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			g.record(ctx, actor, eventID, audit.ActionDeleteEvent, audit.OutcomeFailure, 0)
		}
		return err
	}

	photos, err := g.Photos.DeleteByEvent(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("delete event photos: %w", err)
	}
	if _, err := g.Comments.DeleteByEvent(ctx, ev.ID); err != nil {
		return fmt.Errorf("delete event comments: %w", err)
	}
	if _, err := g.Reactions.DeleteByEvent(ctx, ev.ID); err != nil {
		return fmt.Errorf("delete event reactions: %w", err)
	}
	if err := g.Events.Delete(ctx, ev.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	keys := make([]string, 0, len(photos)+1)
	for _, p := range photos {
		if p.ObjectKey != "" {
			keys = append(keys, p.ObjectKey)
		}
	}
	if ev.CoverKey != "" {
		keys = append(keys, ev.CoverKey)
	}
	g.DiscardBlobs(ctx, keys)

	g.invalidate(ctx, ev)
	g.record(ctx, actor, ev.ID, audit.ActionDeleteEvent, audit.OutcomeSuccess, len(photos))
	g.Logger.InfoContext(ctx, "event deleted", "event_id", ev.ID, "photos", len(photos), "blobs", len(keys))
	return nil
}

func (g *Gate) cascadePhotos(ctx context.Context, photoIDs []string) {
	if c, ok := g.Comments.(photoCascader); ok {
		c.DeleteByPhotos(ctx, photoIDs)
	}
	if r, ok := g.Reactions.(photoCascader); ok {
		r.DeleteByPhotos(ctx, photoIDs)
	}
}

// DiscardBlobs removes keys from object storage, queueing failures for the sweeper.
func (g *Gate) DiscardBlobs(ctx context.Context, keys []string) {
	if len(keys) == 0 || g.Blobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
	defer cancel()

	failed, err := g.Blobs.DeleteObjects(ctx, keys)
	if err != nil && len(failed) == 0 {
		failed = keys
	}
	if len(failed) == 0 {
		return
	}
	g.Logger.WarnContext(ctx, "blob delete failed, queueing for retry", "keys", len(failed), "error", err)
	g.Metrics.addBlobFailures(len(failed))
	if g.Orphans == nil {
		return
	}
	if err := g.Orphans.Push(ctx, failed...); err != nil {
		g.Logger.ErrorContext(ctx, "failed to queue orphaned blobs", "keys", failed, "error", err)
	}
}

func (g *Gate) invalidate(ctx context.Context, ev *event.Event) {
	if g.Cache == nil {
		return
	}
	if err := g.Cache.Invalidate(ctx, ev.Slug); err != nil {
		g.Logger.WarnContext(ctx, "gallery cache invalidation failed", "slug", ev.Slug, "error", err)
	}
}

func (g *Gate) publish(ev *event.Event, items []feed.Item) {
	if g.Publisher == nil || len(items) == 0 || ev.Social.PanicMode {
		return
	}
	g.Publisher.Publish(ev.Slug, items)
}

func (g *Gate) afterChange(ctx context.Context, ev *event.Event, approved []feed.Item) {
	g.invalidate(ctx, ev)
	g.publish(ev, approved)
}

func (g *Gate) record(ctx context.Context, actor identity.Organizer, eventID, action, outcome string, count int) {
	if g.Audit == nil {
		return
	}
	err := audit.Record(ctx, g.Audit, audit.LogEntry{
		ActorID:    actor.UserID,
		EntityType: audit.EntityEvent,
		EntityID:   eventID,
		Action:     action,
		Outcome:    outcome,
		Count:      count,
	})
	if err != nil {
		g.Logger.ErrorContext(ctx, "failed to write audit log", "action", action, "event_id", eventID, "error", err)
	}
}
