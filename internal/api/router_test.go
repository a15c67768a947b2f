package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yusufkarademir/etkinlikqr/internal/audit"
	"github.com/yusufkarademir/etkinlikqr/internal/auth"
	"github.com/yusufkarademir/etkinlikqr/internal/cache"
	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/health"
	"github.com/yusufkarademir/etkinlikqr/internal/live"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
	"github.com/yusufkarademir/etkinlikqr/internal/moderation"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
	"github.com/yusufkarademir/etkinlikqr/internal/upload"
	"github.com/yusufkarademir/etkinlikqr/internal/user"
)

const (
	testSecret     = "test-secret-that-is-long-enough-for-hs256"
	testGuestToken = "3f2b8c1e-6a4d-4f7e-9b1a-2c5d8e0f1a2b"
)

// testAPI is the full router over in-memory repositories.
type testAPI struct {
	handler   http.Handler
	jwt       *auth.JWTService
	users     *user.InMemoryRepository
	events    *event.InMemoryRepository
	photos    *photo.InMemoryRepository
	comments  *comment.InMemoryRepository
	reactions *reaction.InMemoryRepository
	audit     *audit.InMemoryRepository
	blobs     *upload.MemoryStore
	cache     *cache.MemoryGalleryCache
	live      *live.Broadcaster
	registry  *prometheus.Registry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &testAPI{
		jwt:       auth.NewJWTService(testSecret),
		users:     user.NewInMemoryRepository(),
		events:    event.NewInMemoryRepository(),
		photos:    photo.NewInMemoryRepository(),
		comments:  comment.NewInMemoryRepository(),
		reactions: reaction.NewInMemoryRepository(),
		audit:     audit.NewInMemoryRepository(),
		blobs:     upload.NewMemoryStore("https://cdn.example.com"),
		cache:     cache.NewMemoryGalleryCache(time.Minute),
		registry:  prometheus.NewRegistry(),
	}
	uploads := upload.NewService(a.blobs, nil, upload.ServiceConfig{MaxSizeMB: 1})
	broadcaster := live.NewBroadcaster(live.Config{Logger: logger})
	a.live = broadcaster
	gate := moderation.NewGate(moderation.Deps{
		Events:    a.events,
		Photos:    a.photos,
		Comments:  a.comments,
		Reactions: a.reactions,
		Audit:     a.audit,
		Blobs:     uploads,
		Cache:     a.cache,
		Publisher: broadcaster,
		Logger:    logger,
	})
	metrics := middleware.NewMetrics()
	if err := metrics.Register(a.registry); err != nil {
		t.Fatal(err)
	}

	a.handler = NewRouter(RouterConfig{
		Auth:       NewAuthHandlers(a.users, a.jwt),
		Events:     NewEventHandlers(a.events, gate, uploads, a.audit, "https://etkinlikqr.example"),
		Moderation: NewModerationHandlers(gate),
		Guest: NewGuestHandlers(GuestConfig{
			Events:       a.events,
			Photos:       a.photos,
			Comments:     a.comments,
			Reactions:    a.reactions,
			Uploads:      uploads,
			Cache:        a.cache,
			Publisher:    broadcaster,
			PublicAppURL: "https://etkinlikqr.example",
		}),
		Feed:   NewFeedHandlers(feed.NewService(a.events, a.photos, a.comments, a.reactions), a.events, broadcaster),
		Health: NewHealthHandlers(map[string]health.Checker{}),

		Tokens:   a.jwt,
		Metrics:  metrics,
		Gatherer: a.registry,
		Logger:   logger,
	})
	return a
}

// token returns an access token for a fresh organizer.
func (a *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := a.jwt.GenerateAccessToken(userID, userID+"@example.com")
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withGuest(token string) requestOption {
	return func(r *http.Request) { r.Header.Set(middleware.GuestTokenHeader, token) }
}

func (a *testAPI) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

// upload posts a multipart file to path.
func (a *testAPI) upload(t *testing.T, path, contentType string, data []byte, fields map[string]string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="IMG_0001.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

// createEvent stores an event owned by ownerID directly in the repository.
func (a *testAPI) createEvent(t *testing.T, ownerID, name string, social event.SocialConfig) *event.Event {
	t.Helper()
	ev := &event.Event{OwnerID: ownerID, Name: name, Social: social}
	if err := event.CreateWithSlug(context.Background(), a.events, ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func (a *testAPI) createPhoto(t *testing.T, ev *event.Event, status photo.Status) *photo.Photo {
	t.Helper()
	p := &photo.Photo{
		EventID:   ev.ID,
		URL:       "https://cdn.example.com/" + ev.ID + "/p.jpg",
		ObjectKey: ev.ID + "/p.jpg",
		MediaKind: photo.MediaImage,
		Status:    status,
	}
	if err := a.photos.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

// assertErrorResponse verifies the error envelope and code.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("expected status %d, got %d: %s", wantStatus, w.Code, w.Body.String())
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != wantCode {
		t.Errorf("expected error code %q, got %q", wantCode, errResp.Error.Code)
	}
	if errResp.Error.Message == "" {
		t.Error("expected non-empty error message")
	}
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, w.Body.String())
	}
	return v
}

func TestRouter_UnknownRoute(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodGet, "/api/nope", nil)
	assertErrorResponse(t, w, http.StatusNotFound, ErrCodeNotFound)
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request ID header")
	}
}

func TestRouter_OrganizerRoutesRequireAuth(t *testing.T) {
	a := newTestAPI(t)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/events"},
		{http.MethodPost, "/api/events"},
		{http.MethodPatch, "/api/events/x/settings"},
		{http.MethodPost, "/api/photos/approve"},
		{http.MethodPost, "/api/comments/reject"},
		{http.MethodGet, "/api/events/x/audit"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := a.do(t, rt.method, rt.path, nil)
			assertErrorResponse(t, w, http.StatusUnauthorized, ErrCodeAuthFailed)
		})
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	a := newTestAPI(t)
	if w := a.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}
	if w := a.do(t, http.MethodGet, "/ready", nil); w.Code != http.StatusOK {
		t.Errorf("/ready status = %d", w.Code)
	}
	a.do(t, http.MethodGet, "/api/nope", nil)

	w := a.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(middleware.MetricHTTPRequestsTotal)) {
		t.Errorf("expected %s in metrics output", middleware.MetricHTTPRequestsTotal)
	}
}
