package api

import (
	"net/http"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/live"
)

// FeedHandlers serves the delta endpoints polled by guest pages and live walls.
type FeedHandlers struct {
	feeds       *feed.Service
	events      event.Repository
	broadcaster *live.Broadcaster
}

// NewFeedHandlers creates feed handlers. broadcaster may be nil, which disables
// the websocket endpoint.
func NewFeedHandlers(feeds *feed.Service, events event.Repository, broadcaster *live.Broadcaster) *FeedHandlers {
	return &FeedHandlers{feeds: feeds, events: events, broadcaster: broadcaster}
}

// parseSince reads the optional ?since= watermark.
func parseSince(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		fail(w, r, ErrCodeValidation, "since must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}

func (h *FeedHandlers) serveFeed(w http.ResponseWriter, r *http.Request, q feed.Query) {
	since, ok := parseSince(w, r)
	if !ok {
		return
	}
	q.Since = since
	f, err := h.feeds.GetFeed(r.Context(), r.PathValue("slug"), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, r, http.StatusOK, f)
}

// Feed handles GET /api/e/{slug}/feed?since=.
func (h *FeedHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, feed.Query{Window: feed.LiveWindow})
}

// Slideshow handles GET /api/e/{slug}/slideshow?since=.
func (h *FeedHandlers) Slideshow(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, feed.Query{Window: feed.SlideshowWindow, PhotosOnly: true})
}

// Live handles GET /api/e/{slug}/live, upgrading to a websocket that receives
// items as they are approved.
func (h *FeedHandlers) Live(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		fail(w, r, ErrCodeNotFound, "Live updates are not available")
		return
	}
	ev, err := h.events.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.broadcaster.Serve(r.Context(), w, r, ev.Slug)
}
