package moderation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yusufkarademir/etkinlikqr/internal/audit"
	"github.com/yusufkarademir/etkinlikqr/internal/cache"
	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/identity"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
	"github.com/yusufkarademir/etkinlikqr/internal/upload"
)

type memoryOrphans struct {
	mu   sync.Mutex
	keys []string
}

func (q *memoryOrphans) Push(_ context.Context, keys ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, keys...)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	items  map[string][]feed.Item
	panics map[string]bool
}

func (p *recordingPublisher) Publish(slug string, items []feed.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[slug] = append(p.items[slug], items...)
}

func (p *recordingPublisher) PublishPanic(slug string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panics[slug] = on
}

var (
	owner1 = identity.Organizer{UserID: "organizer-1"}
	owner2 = identity.Organizer{UserID: "organizer-2"}
)

type fixture struct {
	events    *event.InMemoryRepository
	photos    *photo.InMemoryRepository
	comments  *comment.InMemoryRepository
	reactions *reaction.InMemoryRepository
	audit     *audit.InMemoryRepository
	blobs     *upload.MemoryStore
	orphans   *memoryOrphans
	cache     *cache.MemoryGalleryCache
	pub       *recordingPublisher
	metrics   *Metrics
	gate      *Gate
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		events:    event.NewInMemoryRepository(),
		photos:    photo.NewInMemoryRepository(),
		comments:  comment.NewInMemoryRepository(),
		reactions: reaction.NewInMemoryRepository(),
		audit:     audit.NewInMemoryRepository(),
		blobs:     upload.NewMemoryStore("https://cdn.example.com"),
		orphans:   &memoryOrphans{},
		cache:     cache.NewMemoryGalleryCache(time.Minute),
		pub:       &recordingPublisher{items: map[string][]feed.Item{}, panics: map[string]bool{}},
		metrics:   NewMetrics(),
		now:       time.Date(2026, 6, 14, 21, 0, 0, 0, time.UTC),
	}
	f.gate = NewGate(Deps{
		Events:    f.events,
		Photos:    f.photos,
		Comments:  f.comments,
		Reactions: f.reactions,
		Audit:     f.audit,
		Blobs:     f.blobs,
		Orphans:   f.orphans,
		Cache:     f.cache,
		Publisher: f.pub,
		Metrics:   f.metrics,
	})
	f.gate.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addEvent(t *testing.T, owner identity.Organizer, slug string) *event.Event {
	t.Helper()
	ev := &event.Event{OwnerID: owner.UserID, Slug: slug, Name: slug, Social: event.DefaultSocialConfig()}
	if err := f.events.Create(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func (f *fixture) addPhoto(t *testing.T, ev *event.Event, status photo.Status) *photo.Photo {
	t.Helper()
	ctx := context.Background()
	key := upload.ObjectKey(ev.ID, "IMG.jpg", f.now.Add(time.Duration(f.blobs.Len())*time.Millisecond))
	if err := f.blobs.Put(ctx, key, "image/jpeg", strings.NewReader("jpeg"), 4); err != nil {
		t.Fatal(err)
	}
	p := &photo.Photo{EventID: ev.ID, ObjectKey: key, MediaKind: photo.MediaImage, Status: status, CreatedAt: f.now.Add(-time.Hour)}
	if err := f.photos.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) addComment(t *testing.T, p *photo.Photo, status comment.Status) *comment.Comment {
	t.Helper()
	c := &comment.Comment{PhotoID: p.ID, EventID: p.EventID, Content: "harika", AuthorToken: "guest", Status: status}
	if err := f.comments.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestApprovePhotos(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-aaaaaa")
	p1 := f.addPhoto(t, ev, photo.StatusPending)
	p2 := f.addPhoto(t, ev, photo.StatusPending)
	ctx := context.Background()

	if err := f.cache.Set(ctx, ev.Slug, []*photo.Photo{}); err != nil {
		t.Fatal(err)
	}

	n, err := f.gate.ApprovePhotos(ctx, []string{p1.ID, p2.ID, p1.ID}, owner1)
	if err != nil {
		t.Fatalf("ApprovePhotos() error = %v", err)
	}
	if n != 2 {
		t.Errorf("approved = %d, want 2", n)
	}

	got, err := f.photos.GetByID(ctx, p1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != photo.StatusApproved || !got.UpdatedAt.Equal(f.now) {
		t.Errorf("photo = %s updated %v, want approved at %v", got.Status, got.UpdatedAt, f.now)
	}
	if _, ok, _ := f.cache.Get(ctx, ev.Slug); ok {
		t.Error("gallery cache was not invalidated")
	}
	if len(f.pub.items[ev.Slug]) != 2 {
		t.Errorf("published %d items, want 2", len(f.pub.items[ev.Slug]))
	}
	if v := testutil.ToFloat64(f.metrics.decisions.WithLabelValues(KindPhoto, DecisionApprove)); v != 2 {
		t.Errorf("decisions metric = %v, want 2", v)
	}

	logs, _ := f.audit.QueryByEntity(ctx, audit.EntityEvent, ev.ID, 0)
	if len(logs) != 1 || logs[0].Action != audit.ActionApprovePhotos || logs[0].Count != 2 || logs[0].ActorID != owner1.UserID {
		t.Errorf("audit logs = %+v", logs)
	}
}

func TestApprovePhotos_ForeignEventIsForbidden(t *testing.T) {
	f := newFixture(t)
	mine := f.addEvent(t, owner2, "mine-bbbbbb")
	theirs := f.addEvent(t, owner1, "theirs-cccccc")
	own := f.addPhoto(t, mine, photo.StatusPending)
	foreign := f.addPhoto(t, theirs, photo.StatusPending)
	ctx := context.Background()

	_, err := f.gate.ApprovePhotos(ctx, []string{own.ID, foreign.ID}, owner2)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ApprovePhotos() error = %v, want ErrForbidden", err)
	}
	for _, id := range []string{own.ID, foreign.ID} {
		p, err := f.photos.GetByID(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Status != photo.StatusPending {
			t.Errorf("photo %s status = %s, want unchanged pending", id, p.Status)
		}
	}

	logs, _ := f.audit.QueryByEntity(ctx, audit.EntityEvent, theirs.ID, 0)
	if len(logs) != 1 || logs[0].Outcome != audit.OutcomeFailure {
		t.Errorf("audit logs = %+v, want one failure", logs)
	}
}

func TestRejectPhotos_ForeignEventIsForbidden(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-dddddd")
	p := f.addPhoto(t, ev, photo.StatusApproved)

	if _, err := f.gate.RejectPhotos(context.Background(), []string{p.ID}, owner2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("RejectPhotos() error = %v, want ErrForbidden", err)
	}
	if _, err := f.photos.GetByID(context.Background(), p.ID); err != nil {
		t.Errorf("photo was deleted: %v", err)
	}
	if _, ok := f.blobs.Get(p.ObjectKey); !ok {
		t.Error("blob was deleted")
	}
}

func TestBatchValidation(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-eeeeee")
	p := f.addPhoto(t, ev, photo.StatusPending)
	ctx := context.Background()

	tests := []struct {
		name    string
		ids     []string
		wantN   int
		wantErr error
	}{
		{"empty batch", nil, 0, ErrEmptyBatch},
		{"blank ids", []string{"", ""}, 0, ErrEmptyBatch},
		{"whitespace ids", []string{" ", "\t"}, 0, ErrEmptyBatch},
		{"all missing", []string{"gone-1", "gone-2"}, 0, ErrNotFound},
		{"missing ids skipped", []string{"gone-1", p.ID}, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := f.gate.ApprovePhotos(ctx, tt.ids, owner1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Errorf("n = %d, want %d", n, tt.wantN)
			}
		})
	}
}

func TestRejectPhotos_CascadesAndDeletesBlobs(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-ffffff")
	p := f.addPhoto(t, ev, photo.StatusApproved)
	keep := f.addPhoto(t, ev, photo.StatusApproved)
	c := f.addComment(t, p, comment.StatusApproved)
	ctx := context.Background()
	if _, _, err := f.reactions.Toggle(ctx, p.ID, ev.ID, "guest", "❤️"); err != nil {
		t.Fatal(err)
	}

	n, err := f.gate.RejectPhotos(ctx, []string{p.ID}, owner1)
	if err != nil || n != 1 {
		t.Fatalf("RejectPhotos() = %d, %v; want 1, nil", n, err)
	}
	if _, err := f.photos.GetByID(ctx, p.ID); !errors.Is(err, photo.ErrPhotoNotFound) {
		t.Errorf("photo still present: %v", err)
	}
	if got, _ := f.comments.GetMany(ctx, []string{c.ID}); len(got) != 0 {
		t.Error("comment of rejected photo survived")
	}
	if s, _ := f.reactions.Summary(ctx, p.ID); len(s) != 0 {
		t.Errorf("reactions of rejected photo survived: %v", s)
	}
	if _, ok := f.blobs.Get(p.ObjectKey); ok {
		t.Error("blob of rejected photo survived")
	}
	if _, ok := f.blobs.Get(keep.ObjectKey); !ok {
		t.Error("unrelated blob was deleted")
	}
	if len(f.orphans.keys) != 0 {
		t.Errorf("orphans = %v, want none", f.orphans.keys)
	}
}

func TestRejectPhotos_FailedBlobDeleteIsQueued(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-gggggg")
	p := f.addPhoto(t, ev, photo.StatusPending)
	f.blobs.FailDeletes(true, p.ObjectKey)

	if _, err := f.gate.RejectPhotos(context.Background(), []string{p.ID}, owner1); err != nil {
		t.Fatalf("RejectPhotos() error = %v", err)
	}
	if _, err := f.photos.GetByID(context.Background(), p.ID); !errors.Is(err, photo.ErrPhotoNotFound) {
		t.Error("record must be deleted even when the blob delete fails")
	}
	if len(f.orphans.keys) != 1 || f.orphans.keys[0] != p.ObjectKey {
		t.Errorf("orphans = %v, want [%s]", f.orphans.keys, p.ObjectKey)
	}
	if v := testutil.ToFloat64(f.metrics.blobFailures); v != 1 {
		t.Errorf("blob failure metric = %v, want 1", v)
	}
}

func TestRejectPhotos_AlreadyRejected(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-hhhhhh")
	p := f.addPhoto(t, ev, photo.StatusPending)
	ctx := context.Background()

	if _, err := f.gate.RejectPhotos(ctx, []string{p.ID}, owner1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.gate.RejectPhotos(ctx, []string{p.ID}, owner1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second reject error = %v, want ErrNotFound", err)
	}
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-iiiiii")
	p := f.addPhoto(t, ev, photo.StatusApproved)
	c1 := f.addComment(t, p, comment.StatusPending)
	c2 := f.addComment(t, p, comment.StatusPending)
	ctx := context.Background()

	if _, err := f.gate.ApproveComments(ctx, []string{c1.ID}, owner2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign approve error = %v, want ErrForbidden", err)
	}

	n, err := f.gate.ApproveComments(ctx, []string{c1.ID}, owner1)
	if err != nil || n != 1 {
		t.Fatalf("ApproveComments() = %d, %v", n, err)
	}
	got, _ := f.comments.GetMany(ctx, []string{c1.ID})
	if len(got) != 1 || got[0].Status != comment.StatusApproved || !got[0].CreatedAt.Equal(c1.CreatedAt) {
		t.Errorf("approved comment = %+v, want approved with created_at kept", got)
	}

	n, err = f.gate.RejectComments(ctx, []string{c2.ID}, owner1)
	if err != nil || n != 1 {
		t.Fatalf("RejectComments() = %d, %v", n, err)
	}
	if got, _ := f.comments.GetMany(ctx, []string{c2.ID}); len(got) != 0 {
		t.Error("rejected comment still present")
	}
}

func TestQueue(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-jjjjjj")
	pending := f.addPhoto(t, ev, photo.StatusPending)
	approved := f.addPhoto(t, ev, photo.StatusApproved)
	c := f.addComment(t, approved, comment.StatusPending)
	f.addComment(t, approved, comment.StatusApproved)
	ctx := context.Background()

	q, err := f.gate.Queue(ctx, ev.ID, owner1)
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Photos) != 1 || q.Photos[0].ID != pending.ID {
		t.Errorf("queued photos = %v, want [%s]", q.Photos, pending.ID)
	}
	if len(q.Comments) != 1 || q.Comments[0].ID != c.ID {
		t.Errorf("queued comments = %v, want [%s]", q.Comments, c.ID)
	}

	if _, err := f.gate.Queue(ctx, ev.ID, owner2); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign Queue() error = %v, want ErrForbidden", err)
	}
}

func TestSetPanicMode(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-kkkkkk")
	ctx := context.Background()

	if _, err := f.gate.SetPanicMode(ctx, ev.ID, owner2, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign SetPanicMode() error = %v, want ErrForbidden", err)
	}

	cfg, err := f.gate.SetPanicMode(ctx, ev.ID, owner1, true)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.PanicMode || !cfg.CommentsEnabled {
		t.Errorf("config = %+v, want panic on with other settings kept", cfg)
	}
	stored, _ := f.events.GetByID(ctx, ev.ID)
	if !stored.Social.PanicMode {
		t.Error("panic mode not persisted")
	}
	if on, ok := f.pub.panics[ev.Slug]; !ok || !on {
		t.Error("panic frame not published")
	}

	// Approvals during panic are not pushed to live walls.
	p := f.addPhoto(t, ev, photo.StatusPending)
	if _, err := f.gate.ApprovePhotos(ctx, []string{p.ID}, owner1); err != nil {
		t.Fatal(err)
	}
	if len(f.pub.items[ev.Slug]) != 0 {
		t.Errorf("published %d items during panic", len(f.pub.items[ev.Slug]))
	}
}

func TestUpdateSocialConfig(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-llllll")
	ctx := context.Background()
	off := false

	if _, err := f.gate.UpdateSocialConfig(ctx, ev.ID, owner1, event.SocialConfigPatch{}); !errors.Is(err, ErrEmptyPatch) {
		t.Errorf("empty patch error = %v, want ErrEmptyPatch", err)
	}
	cfg, err := f.gate.UpdateSocialConfig(ctx, ev.ID, owner1, event.SocialConfigPatch{CommentsEnabled: &off})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CommentsEnabled || !cfg.ReactionsEnabled {
		t.Errorf("config = %+v", cfg)
	}
	if _, ok := f.pub.panics[ev.Slug]; ok {
		t.Error("panic frame published although panic mode did not change")
	}
	if _, err := f.gate.UpdateSocialConfig(ctx, "missing", owner1, event.SocialConfigPatch{CommentsEnabled: &off}); !errors.Is(err, event.ErrEventNotFound) {
		t.Errorf("missing event error = %v", err)
	}
}

func TestDeleteEvent(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, owner1, "dugun-mmmmmm")
	other := f.addEvent(t, owner1, "diger-nnnnnn")
	p := f.addPhoto(t, ev, photo.StatusApproved)
	otherPhoto := f.addPhoto(t, other, photo.StatusApproved)
	f.addComment(t, p, comment.StatusApproved)
	ctx := context.Background()

	cover := upload.CoverKey(ev.ID, "kapak.jpg", f.now)
	if err := f.blobs.Put(ctx, cover, "image/jpeg", strings.NewReader("c"), 1); err != nil {
		t.Fatal(err)
	}
	ev.CoverKey = cover
	if err := f.events.Update(ctx, ev); err != nil {
		t.Fatal(err)
	}

	if err := f.gate.DeleteEvent(ctx, ev.ID, owner2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign DeleteEvent() error = %v, want ErrForbidden", err)
	}
	if err := f.gate.DeleteEvent(ctx, ev.ID, owner1); err != nil {
		t.Fatal(err)
	}

	if _, err := f.events.GetByID(ctx, ev.ID); !errors.Is(err, event.ErrEventNotFound) {
		t.Error("event still present")
	}
	if got, _ := f.photos.ListByEvent(ctx, ev.ID, "", 0); len(got) != 0 {
		t.Errorf("%d photos survived", len(got))
	}
	if _, ok := f.blobs.Get(p.ObjectKey); ok {
		t.Error("photo blob survived")
	}
	if _, ok := f.blobs.Get(cover); ok {
		t.Error("cover blob survived")
	}
	if _, ok := f.blobs.Get(otherPhoto.ObjectKey); !ok {
		t.Error("blob of another event was deleted")
	}

	logs, _ := f.audit.QueryByEntity(ctx, audit.EntityEvent, ev.ID, 0)
	if len(logs) == 0 || logs[0].Action != audit.ActionDeleteEvent {
		t.Errorf("audit logs = %+v, want delete_event first", logs)
	}
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewMetrics().Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	var nilMetrics *Metrics
	nilMetrics.observe(KindPhoto, DecisionApprove, 1)
	nilMetrics.addBlobFailures(1)

	m := NewMetrics()
	m.addBlobFailures(3)
	if v := testutil.ToFloat64(m.blobFailures); v != 3 {
		t.Errorf("blob failures = %v, want 3", v)
	}
}
