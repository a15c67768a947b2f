package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/audit"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/identity"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
	"github.com/yusufkarademir/etkinlikqr/internal/moderation"
	"github.com/yusufkarademir/etkinlikqr/internal/qr"
	"github.com/yusufkarademir/etkinlikqr/internal/upload"
	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

// maxCoverForm bounds the in-memory part of a cover upload form.
const maxCoverForm = 10 << 20

// EventHandlers serves the organizer's event management endpoints.
type EventHandlers struct {
	events       event.Repository
	gate         *moderation.Gate
	uploads      *upload.Service
	audit        audit.Repository
	publicAppURL string
}

// NewEventHandlers creates event handlers.
func NewEventHandlers(events event.Repository, gate *moderation.Gate, uploads *upload.Service, auditRepo audit.Repository, publicAppURL string) *EventHandlers {
	return &EventHandlers{events: events, gate: gate, uploads: uploads, audit: auditRepo, publicAppURL: publicAppURL}
}

// EventResponse is an event as shown to its organizer.
type EventResponse struct {
	*event.Event
	CoverURL string `json:"cover_url,omitempty"`
	GuestURL string `json:"guest_url"`
}

func (h *EventHandlers) present(ev *event.Event) EventResponse {
	resp := EventResponse{Event: ev, GuestURL: qr.EventURL(h.publicAppURL, ev.Slug)}
	if ev.CoverKey != "" {
		resp.CoverURL = h.uploads.Store().PublicURL(ev.CoverKey)
	}
	return resp
}

// CreateEventRequest is the body of POST /api/events.
type CreateEventRequest struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	StartsAt    *time.Time               `json:"starts_at,omitempty"`
	Social      *event.SocialConfigPatch `json:"social,omitempty"`
}

// UpdateEventRequest is the body of PATCH /api/events/{id}.
type UpdateEventRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
}

// organizer returns the authenticated organizer. RequireAuth runs before every
// organizer route, so a missing identity is a wiring error reported as 401.
func organizer(w http.ResponseWriter, r *http.Request) (identity.Organizer, bool) {
	o, err := identity.NewOrganizer(middleware.GetUserID(r.Context()))
	if err != nil {
		fail(w, r, ErrCodeAuthFailed, "Authentication required")
		return identity.Organizer{}, false
	}
	return o, true
}

// ownedEvent loads the event in the path for its owner. Other organizers get 404.
func (h *EventHandlers) ownedEvent(w http.ResponseWriter, r *http.Request) (*event.Event, identity.Organizer, bool) {
	actor, ok := organizer(w, r)
	if !ok {
		return nil, actor, false
	}
	ev, err := h.gate.Authorize(r.Context(), r.PathValue("id"), actor)
	if errors.Is(err, moderation.ErrForbidden) {
		err = event.ErrEventNotFound
	}
	if err != nil {
		writeDomainError(w, r, err)
		return nil, actor, false
	}
	return ev, actor, true
}

// CreateEvent handles POST /api/events.
func (h *EventHandlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := organizer(w, r)
	if !ok {
		return
	}
	var req CreateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name, err := validate.EventName(req.Name)
	if err != nil {
		fail(w, r, ErrCodeValidation, "name must be 1-120 characters")
		return
	}
	desc, err := validate.Description(req.Description)
	if err != nil {
		fail(w, r, ErrCodeValidation, "description must be at most 2000 characters")
		return
	}

	social := event.DefaultSocialConfig()
	if req.Social != nil {
		social = social.Apply(*req.Social)
	}
	ev := &event.Event{
		OwnerID:     actor.UserID,
		Name:        name,
		Description: desc,
		StartsAt:    req.StartsAt,
		Social:      social,
	}
	if err := event.CreateWithSlug(r.Context(), h.events, ev); err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "event created", "event_id", ev.ID, "slug", ev.Slug)
	writeJSON(w, r, http.StatusCreated, h.present(ev))
}

// ListEvents handles GET /api/events.
func (h *EventHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := organizer(w, r)
	if !ok {
		return
	}
	events, err := h.events.ListByOwner(r.Context(), actor.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, h.present(ev))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"events": out})
}

// GetEvent handles GET /api/events/{id}.
func (h *EventHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, _, ok := h.ownedEvent(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, h.present(ev))
}

// UpdateEvent handles PATCH /api/events/{id}.
func (h *EventHandlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	ev, _, ok := h.ownedEvent(w, r)
	if !ok {
		return
	}
	var req UpdateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != nil {
		name, err := validate.EventName(*req.Name)
		if err != nil {
			fail(w, r, ErrCodeValidation, "name must be 1-120 characters")
			return
		}
		ev.Name = name
	}
	if req.Description != nil {
		desc, err := validate.Description(*req.Description)
		if err != nil {
			fail(w, r, ErrCodeValidation, "description must be at most 2000 characters")
			return
		}
		ev.Description = desc
	}
	if req.StartsAt != nil {
		ev.StartsAt = req.StartsAt
	}
	if err := h.events.Update(r.Context(), ev); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.present(ev))
}

// UpdateSettings handles PATCH /api/events/{id}/settings.
func (h *EventHandlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := organizer(w, r)
	if !ok {
		return
	}
	var patch event.SocialConfigPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	cfg, err := h.gate.UpdateSocialConfig(r.Context(), r.PathValue("id"), actor, patch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"social": cfg})
}

// PanicRequest is the body of POST /api/events/{id}/panic.
type PanicRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetPanic handles POST /api/events/{id}/panic.
func (h *EventHandlers) SetPanic(w http.ResponseWriter, r *http.Request) {
	actor, ok := organizer(w, r)
	if !ok {
		return
	}
	var req PanicRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		fail(w, r, ErrCodeValidation, "enabled is required")
		return
	}
	cfg, err := h.gate.SetPanicMode(r.Context(), r.PathValue("id"), actor, *req.Enabled)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"social": cfg})
}

// DeleteEvent handles DELETE /api/events/{id}.
func (h *EventHandlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := organizer(w, r)
	if !ok {
		return
	}
	if err := h.gate.DeleteEvent(r.Context(), r.PathValue("id"), actor); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ModerationQueue handles GET /api/events/{id}/moderation.
func (h *EventHandlers) ModerationQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := organizer(w, r)
	if !ok {
		return
	}
	q, err := h.gate.Queue(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, q)
}

// CreateMissionRequest is the body of POST /api/events/{id}/missions.
type CreateMissionRequest struct {
	Title string `json:"title"`
}

// CreateMission handles POST /api/events/{id}/missions.
func (h *EventHandlers) CreateMission(w http.ResponseWriter, r *http.Request) {
	ev, _, ok := h.ownedEvent(w, r)
	if !ok {
		return
	}
	var req CreateMissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	title, err := validate.MissionTitle(req.Title)
	if err != nil {
		fail(w, r, ErrCodeValidation, "title must be 1-100 characters")
		return
	}
	m := &event.Mission{EventID: ev.ID, Title: title}
	if err := h.events.CreateMission(r.Context(), m); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m)
}

// ListMissions handles GET /api/events/{id}/missions.
func (h *EventHandlers) ListMissions(w http.ResponseWriter, r *http.Request) {
	ev, _, ok := h.ownedEvent(w, r)
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
	writeJSON(w, r, http.StatusOK, map[string]any{"missions": missions})
}

// UploadCover handles POST /api/events/{id}/cover (multipart field "file").
// The previous cover is discarded after the new one is saved.
func (h *EventHandlers) UploadCover(w http.ResponseWriter, r *http.Request) {
	ev, _, ok := h.ownedEvent(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxSizeBytes()+maxCoverForm)
	if err := r.ParseMultipartForm(maxCoverForm); err != nil {
		fail(w, r, ErrCodeBadRequest, "Expected a multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, ErrCodeValidation, "file is required")
		return
	}
	defer file.Close()

	obj, err := h.uploads.UploadCover(r.Context(), ev.ID, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	previous := ev.CoverKey
	ev.CoverKey = obj.Key
	if err := h.events.Update(r.Context(), ev); err != nil {
		h.gate.DiscardBlobs(r.Context(), []string{obj.Key})
		writeDomainError(w, r, err)
		return
	}
	if previous != "" && previous != obj.Key {
		h.gate.DiscardBlobs(r.Context(), []string{previous})
	}
	writeJSON(w, r, http.StatusOK, h.present(ev))
}

// ExportAudit handles GET /api/events/{id}/audit?format=csv|json&from=&to=&limit=.
func (h *EventHandlers) ExportAudit(w http.ResponseWriter, r *http.Request) {
	ev, _, ok := h.ownedEvent(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := audit.ExportOptions{Format: audit.ExportFormat(q.Get("format")), EventID: ev.ID}
	if opts.Format == "" {
		opts.Format = audit.ExportFormatJSON
	}
	if opts.Format != audit.ExportFormatJSON && opts.Format != audit.ExportFormatCSV {
		fail(w, r, ErrCodeValidation, "format must be csv or json")
		return
	}
	var err error
	if opts.From, err = parseTimeParam(q.Get("from")); err != nil {
		fail(w, r, ErrCodeValidation, "from must be an RFC 3339 timestamp")
		return
	}
	if opts.To, err = parseTimeParam(q.Get("to")); err != nil {
		fail(w, r, ErrCodeValidation, "to must be an RFC 3339 timestamp")
		return
	}
	if v := q.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit < 0 {
			fail(w, r, ErrCodeValidation, "limit must be a non-negative integer")
			return
		}
	}

	data, err := audit.ExportLogs(r.Context(), h.audit, opts)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	contentType := "application/json; charset=utf-8"
	if opts.Format == audit.ExportFormatCSV {
		contentType = "text/csv; charset=utf-8"
		w.Header().Set("Content-Disposition", `attachment; filename="audit-`+ev.Slug+`.csv"`)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseTimeParam parses an optional RFC 3339 query value; "" yields the zero time.
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
