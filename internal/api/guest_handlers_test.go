package api

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"testing"

	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
)

func TestGuestGetEvent(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent(t, "organizer-1", "Yaz Partisi", event.DefaultSocialConfig())
	if err := a.events.CreateMission(context.Background(), &event.Mission{EventID: ev.ID, Title: "Dans pisti"}); err != nil {
		t.Fatal(err)
	}

	w := a.do(t, http.MethodGet, "/api/e/"+ev.Slug, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decodeBody[PublicEventResponse](t, w)
	if got.Name != "Yaz Partisi" || len(got.Missions) != 1 || !got.Social.CommentsEnabled {
		t.Errorf("public view = %+v", got)
	}

	w = a.do(t, http.MethodGet, "/api/e/does-not-exist", nil)
	assertErrorResponse(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestGuestQRCode(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent(t, "organizer-1", "Party", event.DefaultSocialConfig())

	w := a.do(t, http.MethodGet, "/api/e/"+ev.Slug+"/qr.png?size=256&fg=%23112233", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 {
		t.Errorf("width = %d, want 256", b.Dx())
	}

	w = a.do(t, http.MethodGet, "/api/e/"+ev.Slug+"/qr.png?fg=notacolor", nil)
	assertErrorResponse(t, w, http.StatusBadRequest, ErrCodeValidation)
}

func TestGuestUpload_StatusFollowsRequireApproval(t *testing.T) {
	tests := []struct {
		name            string
		requireApproval bool
		wantStatus      photo.Status
		wantInGallery   int
	}{
		{"open event", false, photo.StatusApproved, 1},
		{"moderated event", true, photo.StatusPending, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)
			social := event.DefaultSocialConfig()
			social.RequireApproval = tt.requireApproval
			ev := a.createEvent(t, "organizer-1", "Party", social)

			w := a.upload(t, "/api/e/"+ev.Slug+"/photos", "image/jpeg", []byte("jpeg"), nil, withGuest(testGuestToken))
			if w.Code != http.StatusCreated {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			if p := decodeBody[photo.Photo](t, w); p.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", p.Status, tt.wantStatus)
			}

			w = a.do(t, http.MethodGet, "/api/e/"+ev.Slug+"/photos", nil)
			gallery := decodeBody[struct {
				Photos []*photo.Photo `json:"photos"`
			}](t, w)
			if len(gallery.Photos) != tt.wantInGallery {
				t.Errorf("gallery has %d photos, want %d", len(gallery.Photos), tt.wantInGallery)
			}
		})
	}
}

func TestGuestUpload_Rejections(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent(t, "organizer-1", "Party", event.DefaultSocialConfig())
	other := a.createEvent(t, "organizer-1", "Other", event.DefaultSocialConfig())
	m := &event.Mission{EventID: other.ID, Title: "Elsewhere"}
	if err := a.events.CreateMission(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	w := a.upload(t, "/api/e/"+ev.Slug+"/photos", "application/pdf", []byte("%PDF"), nil)
	assertErrorResponse(t, w, http.StatusUnsupportedMediaType, ErrCodeUnsupportedType)

	w = a.upload(t, "/api/e/"+ev.Slug+"/photos", "image/jpeg", bytes.Repeat([]byte("x"), 2<<20), nil)
	assertErrorResponse(t, w, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge)

	w = a.upload(t, "/api/e/"+ev.Slug+"/photos", "image/jpeg", []byte("jpeg"), map[string]string{"mission_id": m.ID})
	assertErrorResponse(t, w, http.StatusNotFound, ErrCodeNotFound)

	if a.blobs.Len() != 0 {
		t.Errorf("rejected uploads stored %d blobs", a.blobs.Len())
	}
}

func TestGuestUpload_PanicMode(t *testing.T) {
	a := newTestAPI(t)
	social := event.DefaultSocialConfig()
	social.PanicMode = true
	ev := a.createEvent(t, "organizer-1", "Party", social)
	a.createPhoto(t, ev, photo.StatusApproved)

	w := a.upload(t, "/api/e/"+ev.Slug+"/photos", "image/jpeg", []byte("jpeg"), nil)
	assertErrorResponse(t, w, http.StatusLocked, ErrCodePanicMode)

	w = a.do(t, http.MethodGet, "/api/e/"+ev.Slug+"/photos", nil)
	gallery := decodeBody[struct {
		Photos []*photo.Photo `json:"photos"`
		Panic  bool           `json:"panic"`
	}](t, w)
	if !gallery.Panic || len(gallery.Photos) != 0 {
		t.Errorf("gallery during panic = %+v", gallery)
	}
}

func TestGuestUpload_IdempotentRetry(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent(t, "organizer-1", "Party", event.DefaultSocialConfig())
	retry := func(r *http.Request) { r.Header.Set("Idempotency-Key", "upload-1") }

	first := a.upload(t, "/api/e/"+ev.Slug+"/photos", "image/jpeg", []byte("jpeg"), nil, withGuest(testGuestToken), retry)
	second := a.upload(t, "/api/e/"+ev.Slug+"/photos", "image/jpeg", []byte("jpeg"), nil, withGuest(testGuestToken), retry)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected the retry to be replayed")
	}
	photos, _ := a.photos.ListByEvent(context.Background(), ev.ID, "", 0)
	if len(photos) != 1 {
		t.Errorf("photos = %d, want 1", len(photos))
	}
}

func TestPresignAndComplete(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent(t, "organizer-1", "Party", event.DefaultSocialConfig())

	w := a.do(t, http.MethodPost, "/api/e/"+ev.Slug+"/photos/presign",
		PresignRequest{Filename: "IMG_1.jpg", ContentType: "image/jpeg", Size: 4})
	if w.Code != http.StatusOK {
		t.Fatalf("presign status = %d: %s", w.Code, w.Body.String())
	}
	signed := decodeBody[struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}](t, w)

	w = a.do(t, http.MethodPost, "/api/e/"+ev.Slug+"/photos/complete", CompleteRequest{Key: signed.Key})
	assertErrorResponse(t, w, http.StatusBadRequest, ErrCodeValidation)

	if err := a.blobs.Put(context.Background(), signed.Key, "image/jpeg", bytes.NewReader([]byte("jpeg")), 4); err != nil {
		t.Fatal(err)
	}
	w = a.do(t, http.MethodPost, "/api/e/"+ev.Slug+"/photos/complete", CompleteRequest{Key: signed.Key})
	if w.Code != http.StatusCreated {
		t.Fatalf("complete status = %d: %s", w.Code, w.Body.String())
	}
	if p := decodeBody[photo.Photo](t, w); p.Status != photo.StatusApproved {
		t.Errorf("status = %s", p.Status)
	}

	w = a.do(t, http.MethodPost, "/api/e/"+ev.Slug+"/photos/complete", CompleteRequest{Key: "other-event/x.jpg"})
	assertErrorResponse(t, w, http.StatusBadRequest, ErrCodeValidation)
}

func TestDownload(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent(t, "organizer-1", "Party", event.DefaultSocialConfig())
	approved := a.createPhoto(t, ev, photo.StatusApproved)
	pending := a.createPhoto(t, ev, photo.StatusPending)

	w := a.do(t, http.MethodGet, "/api/photos/"+approved.ID+"/download", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != approved.URL {
		t.Errorf("status = %d, location = %q", w.Code, w.Header().Get("Location"))
	}
	got, _ := a.photos.GetByID(context.Background(), approved.ID)
	if got.Downloads != 1 {
		t.Errorf("downloads = %d, want 1", got.Downloads)
	}

	w = a.do(t, http.MethodGet, "/api/photos/"+pending.ID+"/download", nil)
	assertErrorResponse(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestCreateComment(t *testing.T) {
	tests := []struct {
		name       string
		configure  func(*event.SocialConfig)
		guest      string
		content    string
		wantStatus int
		wantCode   string
	}{
		{"approved", func(*event.SocialConfig) {}, testGuestToken, "Çok güzel!", http.StatusCreated, ""},
		{"missing guest token", func(*event.SocialConfig) {}, "", "hi", http.StatusBadRequest, ErrCodeValidation},
		{"empty content", func(*event.SocialConfig) {}, testGuestToken, "  ", http.StatusBadRequest, ErrCodeValidation},
		{"comments disabled", func(s *event.SocialConfig) { s.CommentsEnabled = false }, testGuestToken, "hi", http.StatusForbidden, ErrCodeFeatureDisabled},
		{"panic", func(s *event.SocialConfig) { s.PanicMode = true }, testGuestToken, "hi", http.StatusLocked, ErrCodePanicMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)
			social := event.DefaultSocialConfig()
			tt.configure(&social)
			ev := a.createEvent(t, "organizer-1", "Party", social)
			p := a.createPhoto(t, ev, photo.StatusApproved)

			var opts []requestOption
			if tt.guest != "" {
				opts = append(opts, withGuest(tt.guest))
			}
			w := a.do(t, http.MethodPost, "/api/photos/"+p.ID+"/comments", CreateCommentRequest{Content: tt.content}, opts...)
			if tt.wantCode != "" {
				assertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
				return
			}
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			if c := decodeBody[comment.Comment](t, w); c.Status != comment.StatusApproved || c.Content != tt.content {
				t.Errorf("comment = %+v", c)
			}
		})
	}
}

func TestCreateComment_ModeratedAndFiltered(t *testing.T) {
	a := newTestAPI(t)
	social := event.DefaultSocialConfig()
	social.RequireModeration = true
	ev := a.createEvent(t, "organizer-1", "Party", social)
	p := a.createPhoto(t, ev, photo.StatusApproved)

	w := a.do(t, http.MethodPost, "/api/photos/"+p.ID+"/comments",
		CreateCommentRequest{Content: "kahpe fotoğraf", AuthorName: "Ali"}, withGuest(testGuestToken))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	c := decodeBody[comment.Comment](t, w)
	if c.Status != comment.StatusPending {
		t.Errorf("status = %s, want pending", c.Status)
	}
	if c.Content != "***** fotoğraf" {
		t.Errorf("content = %q, want the term masked", c.Content)
	}

	w = a.do(t, http.MethodGet, "/api/photos/"+p.ID+"/comments", nil)
	body := decodeBody[struct {
		Comments []*comment.Comment `json:"comments"`
	}](t, w)
	if len(body.Comments) != 0 {
		t.Errorf("pending comment visible to guests: %+v", body.Comments)
	}
}

func TestToggleReaction(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent(t, "organizer-1", "Party", event.DefaultSocialConfig())
	p := a.createPhoto(t, ev, photo.StatusApproved)
	heart := reaction.AllowedEmoji[0]

	w := a.do(t, http.MethodPost, "/api/photos/"+p.ID+"/reactions", ReactionRequest{Emoji: heart}, withGuest(testGuestToken))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[ReactionResponse](t, w)
	if !resp.Added || len(resp.Summary) == 0 || resp.Summary[0].Count != 1 {
		t.Errorf("first toggle = %+v", resp)
	}

	w = a.do(t, http.MethodPost, "/api/photos/"+p.ID+"/reactions", ReactionRequest{Emoji: heart}, withGuest(testGuestToken))
	if resp := decodeBody[ReactionResponse](t, w); resp.Added {
		t.Errorf("second toggle = %+v, want removal", resp)
	}

	w = a.do(t, http.MethodPost, "/api/photos/"+p.ID+"/reactions", ReactionRequest{Emoji: "🍕"}, withGuest(testGuestToken))
	assertErrorResponse(t, w, http.StatusBadRequest, ErrCodeValidation)
}

func TestToggleReaction_Disabled(t *testing.T) {
	a := newTestAPI(t)
	social := event.DefaultSocialConfig()
	social.ReactionsEnabled = false
	ev := a.createEvent(t, "organizer-1", "Party", social)
	p := a.createPhoto(t, ev, photo.StatusApproved)

	w := a.do(t, http.MethodPost, "/api/photos/"+p.ID+"/reactions", ReactionRequest{Emoji: reaction.AllowedEmoji[0]}, withGuest(testGuestToken))
	assertErrorResponse(t, w, http.StatusForbidden, ErrCodeFeatureDisabled)

	w = a.do(t, http.MethodGet, "/api/photos/"+p.ID+"/reactions", nil)
	assertErrorResponse(t, w, http.StatusForbidden, ErrCodeFeatureDisabled)
}
