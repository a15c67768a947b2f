package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/cache"
	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/identity"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
	"github.com/yusufkarademir/etkinlikqr/internal/moderation"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/profanity"
	"github.com/yusufkarademir/etkinlikqr/internal/qr"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
	"github.com/yusufkarademir/etkinlikqr/internal/upload"
	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

// maxUploadForm bounds the in-memory part of a guest upload form; larger files
// spill to disk.
const maxUploadForm = 32 << 20

// GuestHandlers serves the public, slug-addressed endpoints used by guests.
type GuestHandlers struct {
	events       event.Repository
	photos       photo.Repository
	comments     comment.Repository
	reactions    reaction.Repository
	uploads      *upload.Service
	cache        cache.GalleryCache
	publisher    moderation.Publisher
	filter       *profanity.Filter
	publicAppURL string
}

// GuestConfig holds the dependencies of GuestHandlers. Cache and Publisher are optional.
type GuestConfig struct {
	Events       event.Repository
	Photos       photo.Repository
	Comments     comment.Repository
	Reactions    reaction.Repository
	Uploads      *upload.Service
	Cache        cache.GalleryCache
	Publisher    moderation.Publisher
	Filter       *profanity.Filter
	PublicAppURL string
}

// NewGuestHandlers creates guest handlers.
func NewGuestHandlers(cfg GuestConfig) *GuestHandlers {
	if cfg.Filter == nil {
		cfg.Filter = profanity.Default()
	}
	return &GuestHandlers{
		events:       cfg.Events,
		photos:       cfg.Photos,
		comments:     cfg.Comments,
		reactions:    cfg.Reactions,
		uploads:      cfg.Uploads,
		cache:        cfg.Cache,
		publisher:    cfg.Publisher,
		filter:       cfg.Filter,
		publicAppURL: cfg.PublicAppURL,
	}
}

// PublicEventResponse is the guest view of an event.
type PublicEventResponse struct {
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description,omitempty"`
	CoverURL    string             `json:"cover_url,omitempty"`
	StartsAt    *time.Time         `json:"starts_at,omitempty"`
	Social      event.SocialConfig `json:"social"`
	Missions    []*event.Mission   `json:"missions"`
}

func (h *GuestHandlers) eventBySlug(w http.ResponseWriter, r *http.Request) (*event.Event, bool) {
	ev, err := h.events.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	return ev, true
}

// approvedPhoto loads the photo in the path. Pending photos are invisible to guests.
func (h *GuestHandlers) approvedPhoto(w http.ResponseWriter, r *http.Request) (*photo.Photo, *event.Event, bool) {
	p, err := h.photos.GetByID(r.Context(), r.PathValue("id"))
	if err == nil && p.Status != photo.StatusApproved {
		err = photo.ErrPhotoNotFound
	}
	if err != nil {
		writeDomainError(w, r, err)
		return nil, nil, false
	}
	ev, err := h.events.GetByID(r.Context(), p.EventID)
	if err != nil {
		writeDomainError(w, r, err)
		return nil, nil, false
	}
	return p, ev, true
}

func guestToken(w http.ResponseWriter, r *http.Request) (identity.GuestToken, bool) {
	token, err := identity.ParseGuestToken(r.Header.Get(middleware.GuestTokenHeader))
	if err != nil {
		fail(w, r, ErrCodeValidation, "A valid "+middleware.GuestTokenHeader+" header is required")
		return "", false
	}
	return token, true
}

func (h *GuestHandlers) publish(ev *event.Event, items ...feed.Item) {
	if h.publisher != nil && !ev.Social.PanicMode {
		h.publisher.Publish(ev.Slug, items)
	}
}

func (h *GuestHandlers) invalidate(ctx context.Context, ev *event.Event) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, ev.Slug); err != nil {
		slog.WarnContext(ctx, "gallery cache invalidation failed", "slug", ev.Slug, "error", err)
	}
}

// GetEvent handles GET /api/e/{slug}.
func (h *GuestHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.eventBySlug(w, r)
	if !ok {
		return
	}
	missions, err := h.events.ListMissions(r.Context(), ev.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if missions == nil {
		missions = []*event.Mission{}
	}
	resp := PublicEventResponse{
		Name:        ev.Name,
		Slug:        ev.Slug,
		Description: ev.Description,
		StartsAt:    ev.StartsAt,
		Social:      ev.Social,
		Missions:    missions,
	}
	if ev.CoverKey != "" {
		resp.CoverURL = h.uploads.Store().PublicURL(ev.CoverKey)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// QRCode handles GET /api/e/{slug}/qr.png?size=&fg=&bg=&level=.
func (h *GuestHandlers) QRCode(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.eventBySlug(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	size := 0
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(w, r, ErrCodeValidation, "size must be an integer")
			return
		}
		size = n
	}
	png, err := qr.Render(qr.Options{
		URL:           qr.EventURL(h.publicAppURL, ev.Slug),
		Size:          size,
		Foreground:    q.Get("fg"),
		Background:    q.Get("bg"),
		RecoveryLevel: q.Get("level"),
	})
	if errors.Is(err, qr.ErrInvalidColor) || errors.Is(err, qr.ErrInvalidRecoveryLevel) || errors.Is(err, qr.ErrLowContrast) {
		fail(w, r, ErrCodeValidation, err.Error())
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Gallery handles GET /api/e/{slug}/photos: every approved photo, newest first.
func (h *GuestHandlers) Gallery(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.eventBySlug(w, r)
	if !ok {
		return
	}
	if ev.Social.PanicMode {
		writeJSON(w, r, http.StatusOK, map[string]any{"photos": []*photo.Photo{}, "panic": true})
		return
	}

	ctx := r.Context()
	if h.cache != nil {
		photos, hit, err := h.cache.Get(ctx, ev.Slug)
		if err != nil {
			slog.WarnContext(ctx, "gallery cache read failed", "slug", ev.Slug, "error", err)
		}
		if hit {
			writeJSON(w, r, http.StatusOK, map[string]any{"photos": photos, "panic": false})
			return
		}
	}

	photos, err := h.photos.ListByEvent(ctx, ev.ID, photo.StatusApproved, 0)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if photos == nil {
		photos = []*photo.Photo{}
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, ev.Slug, photos); err != nil {
			slog.WarnContext(ctx, "gallery cache write failed", "slug", ev.Slug, "error", err)
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"photos": photos, "panic": false})
}

// openForUploads rejects uploads to a panicking event.
func openForUploads(ev *event.Event) error {
	if ev.Social.PanicMode {
		return errPanicMode
	}
	return nil
}

// missionFor validates an optional mission id against the event.
func (h *GuestHandlers) missionFor(ctx context.Context, ev *event.Event, missionID string) (*string, error) {
	if missionID == "" {
		return nil, nil
	}
	m, err := h.events.GetMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.EventID != ev.ID {
		return nil, event.ErrMissionNotFound
	}
	return &m.ID, nil
}

// recordPhoto creates the photo row for a stored object. Photos start pending when
// the event requires approval.
func (h *GuestHandlers) recordPhoto(ctx context.Context, ev *event.Event, obj *upload.Object, missionID *string) (*photo.Photo, error) {
	status := photo.StatusApproved
	if ev.Social.RequireApproval {
		status = photo.StatusPending
	}
	p := &photo.Photo{
		EventID:   ev.ID,
		URL:       obj.URL,
		ObjectKey: obj.Key,
		MediaKind: obj.Kind,
		Status:    status,
		MissionID: missionID,
	}
	if err := h.photos.Create(ctx, p); err != nil {
		return nil, err
	}
	if status == photo.StatusApproved {
		h.invalidate(ctx, ev)
		h.publish(ev, feed.NewPhotoItem(p))
	}
	return p, nil
}

// UploadPhoto handles POST /api/e/{slug}/photos (multipart fields "file" and
// optional "mission_id").
func (h *GuestHandlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.eventBySlug(w, r)
	if !ok {
		return
	}
	if err := openForUploads(ev); err != nil {
		writeDomainError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxSizeBytes()+maxUploadForm)
	if err := r.ParseMultipartForm(maxUploadForm); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDomainError(w, r, upload.ErrFileTooLarge)
			return
		}
		fail(w, r, ErrCodeBadRequest, "Expected a multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, ErrCodeValidation, "file is required")
		return
	}
	defer file.Close()

	ctx := r.Context()
	missionID, err := h.missionFor(ctx, ev, r.FormValue("mission_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	obj, err := h.uploads.Upload(ctx, ev.ID, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := h.recordPhoto(ctx, ev, obj, missionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.InfoContext(ctx, "photo uploaded", "event_id", ev.ID, "photo_id", p.ID, "status", p.Status, "size", obj.Size)
	writeJSON(w, r, http.StatusCreated, p)
}

// PresignRequest is the body of POST /api/e/{slug}/photos/presign.
type PresignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// PresignUpload handles POST /api/e/{slug}/photos/presign.
func (h *GuestHandlers) PresignUpload(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.eventBySlug(w, r)
	if !ok {
		return
	}
	if err := openForUploads(ev); err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req PresignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Filename == "" {
		fail(w, r, ErrCodeValidation, "filename is required")
		return
	}
	signed, err := h.uploads.Presign(r.Context(), ev.ID, req.Filename, req.ContentType, req.Size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, signed)
}

// CompleteRequest is the body of POST /api/e/{slug}/photos/complete.
type CompleteRequest struct {
	Key       string `json:"key"`
	MissionID string `json:"mission_id,omitempty"`
}

// CompleteUpload handles POST /api/e/{slug}/photos/complete, recording a photo
// that the browser uploaded to a presigned URL.
func (h *GuestHandlers) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.eventBySlug(w, r)
	if !ok {
		return
	}
	if err := openForUploads(ev); err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req CompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	missionID, err := h.missionFor(ctx, ev, req.MissionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	obj, err := h.uploads.Complete(ctx, ev.ID, req.Key)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := h.recordPhoto(ctx, ev, obj, missionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

// Download handles GET /api/photos/{id}/download.
func (h *GuestHandlers) Download(w http.ResponseWriter, r *http.Request) {
	p, ev, ok := h.approvedPhoto(w, r)
	if !ok {
		return
	}
	if ev.Social.PanicMode {
		writeDomainError(w, r, errPanicMode)
		return
	}
	if err := h.photos.IncrementDownloads(r.Context(), p.ID); err != nil {
		slog.WarnContext(r.Context(), "failed to count download", "photo_id", p.ID, "error", err)
	}
	http.Redirect(w, r, p.URL, http.StatusFound)
}

// ListComments handles GET /api/photos/{id}/comments.
func (h *GuestHandlers) ListComments(w http.ResponseWriter, r *http.Request) {
	p, ev, ok := h.approvedPhoto(w, r)
	if !ok {
		return
	}
	if !ev.Social.CommentsEnabled {
		writeDomainError(w, r, errFeatureDisabled)
		return
	}
	comments := []*comment.Comment{}
	if !ev.Social.PanicMode {
		list, err := h.comments.ListByPhoto(r.Context(), p.ID, true)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if list != nil {
			comments = list
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"comments": comments})
}

// CreateCommentRequest is the body of POST /api/photos/{id}/comments.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	AuthorName string `json:"author_name,omitempty"`
}

// CreateComment handles POST /api/photos/{id}/comments. Content and author name
// are profanity-filtered; the comment starts pending when the event moderates comments.
func (h *GuestHandlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	token, ok := guestToken(w, r)
	if !ok {
		return
	}
	p, ev, ok := h.approvedPhoto(w, r)
	if !ok {
		return
	}
	if !ev.Social.CommentsEnabled {
		writeDomainError(w, r, errFeatureDisabled)
		return
	}
	if ev.Social.PanicMode {
		writeDomainError(w, r, errPanicMode)
		return
	}

	var req CreateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content, err := validate.CommentContent(req.Content)
	if err != nil {
		fail(w, r, ErrCodeValidation, "content must be 1-500 characters")
		return
	}
	author, err := validate.AuthorName(req.AuthorName)
	if err != nil {
		fail(w, r, ErrCodeValidation, "author_name must be at most 40 characters")
		return
	}

	status := comment.StatusApproved
	if ev.Social.RequireModeration {
		status = comment.StatusPending
	}
	c := &comment.Comment{
		PhotoID:     p.ID,
		EventID:     ev.ID,
		Content:     h.filter.Filter(content),
		AuthorToken: token.String(),
		AuthorName:  h.filter.Filter(author),
		Status:      status,
	}
	if err := h.comments.Create(r.Context(), c); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if status == comment.StatusApproved {
		h.publish(ev, feed.NewCommentItem(c))
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// ReactionRequest is the body of POST /api/photos/{id}/reactions.
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

// ReactionResponse reports the result of a toggle.
type ReactionResponse struct {
	Added   bool             `json:"added"`
	Summary reaction.Summary `json:"summary"`
}

// ToggleReaction handles POST /api/photos/{id}/reactions.
func (h *GuestHandlers) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	token, ok := guestToken(w, r)
	if !ok {
		return
	}
	p, ev, ok := h.approvedPhoto(w, r)
	if !ok {
		return
	}
	if !ev.Social.ReactionsEnabled {
		writeDomainError(w, r, errFeatureDisabled)
		return
	}
	if ev.Social.PanicMode {
		writeDomainError(w, r, errPanicMode)
		return
	}

	var req ReactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	added, created, err := h.reactions.Toggle(ctx, p.ID, ev.ID, token.String(), req.Emoji)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if added {
		h.publish(ev, feed.NewReactionItem(created))
	}
	summary, err := h.reactions.Summary(ctx, p.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if summary == nil {
		summary = reaction.Summary{}
	}
	writeJSON(w, r, http.StatusOK, ReactionResponse{Added: added, Summary: summary})
}

// ReactionSummary handles GET /api/photos/{id}/reactions.
func (h *GuestHandlers) ReactionSummary(w http.ResponseWriter, r *http.Request) {
	p, ev, ok := h.approvedPhoto(w, r)
	if !ok {
		return
	}
	if !ev.Social.ReactionsEnabled {
		writeDomainError(w, r, errFeatureDisabled)
		return
	}
	summary := reaction.Summary{}
	if !ev.Social.PanicMode {
		s, err := h.reactions.Summary(r.Context(), p.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if s != nil {
			summary = s
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"summary": summary})
}
