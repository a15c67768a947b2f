package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
)

const guestToken = "3f2b8c1e-6a4d-4f7e-9b1a-2c5d8e0f1a2b"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetFeed(t *testing.T) {
	serverTime := time.Date(2026, 6, 14, 21, 0, 0, 0, time.UTC)
	since := serverTime.Add(-2 * time.Second)

	var gotSince, gotToken string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/e/{slug}/feed", func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		gotToken = r.Header.Get("X-Guest-Token")
		p := &photo.Photo{ID: "p1", EventID: "e1", Status: photo.StatusApproved, CreatedAt: serverTime, UpdatedAt: serverTime}
		writeJSON(w, http.StatusOK, feed.Feed{Items: []feed.Item{feed.NewPhotoItem(p)}, ServerTime: serverTime, Since: since})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, guestToken)
	f, err := c.GetFeed(context.Background(), "yaz-partisi-x1y2z3", &since)
	if err != nil {
		t.Fatal(err)
	}
	if gotSince != since.Format(time.RFC3339Nano) {
		t.Errorf("since = %q", gotSince)
	}
	if gotToken != guestToken {
		t.Errorf("guest token = %q", gotToken)
	}
	if len(f.Items) != 1 || f.Items[0].Kind != feed.KindPhoto || !f.ServerTime.Equal(serverTime) {
		t.Errorf("feed = %+v", f)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusLocked, map[string]any{"error": map[string]string{"code": "panic_mode", "message": "closed"}})
	}))
	defer srv.Close()

	_, err := New(srv.URL, guestToken).ToggleReaction(context.Background(), "p1", "🔥")
	if !IsCode(err, "panic_mode") {
		t.Fatalf("err = %v, want panic_mode API error", err)
	}
}

func TestPollerWithClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/e/{slug}/slideshow", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		var items []feed.Item
		if r.URL.Query().Get("since") == "" {
			items = append(items, feed.NewPhotoItem(&photo.Photo{ID: "p1", Status: photo.StatusApproved, CreatedAt: now, UpdatedAt: now}))
		}
		writeJSON(w, http.StatusOK, feed.Feed{Items: items, ServerTime: now})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	updates := make(chan feed.Update, 8)
	p := feed.NewPoller(New(srv.URL, "").SlideshowFetcher("party"), feed.PollerConfig{
		Interval: 20 * time.Millisecond,
		OnUpdate: func(u feed.Update) {
			select {
			case updates <- u:
			default:
			}
		},
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	select {
	case u := <-updates:
		if len(u.Items) != 1 || len(u.Added) != 1 {
			t.Errorf("first update = %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}
	select {
	case u := <-updates:
		if len(u.Items) != 1 || len(u.Added) != 0 {
			t.Errorf("second update = %+v, want the item kept without duplicates", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no second update received")
	}
}

func TestCommentSession(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		created   comment.Status
		wantState feed.OptimisticState
		wantErr   bool
		wantView  int
	}{
		{"approved", http.StatusCreated, comment.StatusApproved, feed.OptimisticConfirmed, false, 1},
		{"held for moderation", http.StatusCreated, comment.StatusPending, feed.OptimisticRolledBack, false, 0},
		{"rejected by server", http.StatusForbidden, "", feed.OptimisticRolledBack, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != http.StatusCreated {
					writeJSON(w, tt.status, map[string]any{"error": map[string]string{"code": "feature_disabled", "message": "off"}})
					return
				}
				var req map[string]string
				_ = json.NewDecoder(r.Body).Decode(&req)
				writeJSON(w, tt.status, comment.Comment{
					ID: "c1", PhotoID: r.PathValue("id"), Content: req["content"], Status: tt.created, CreatedAt: time.Now().UTC(),
				})
			}))
			defer srv.Close()

			s := NewCommentSession(New(srv.URL, guestToken))
			localID, _, err := s.Submit(context.Background(), "p1", "harika", "Ali")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if state, ok := s.State(localID); !ok || state != tt.wantState {
				t.Errorf("state = %v, want %v", state, tt.wantState)
			}
			if view := s.View(nil); len(view) != tt.wantView {
				t.Errorf("view has %d items, want %d", len(view), tt.wantView)
			}
		})
	}
}
