package upload

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"IMG_0001.JPG", "IMG_0001.JPG"},
		{"düğün fotoğrafı.jpg", "d_n_foto_raf_.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ayse\Desktop\foto.png`, "foto.png"},
		{".hidden", "hidden"},
		{"", "file"},
		{"///", "file"},
		{strings.Repeat("a", 150) + ".jpg", strings.Repeat("a", 96) + ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1718395200123)
	if got, want := ObjectKey("evt-1", "a b.jpg", now), "events/evt-1/1718395200123-a_b.jpg"; got != want {
		t.Errorf("ObjectKey() = %q, want %q", got, want)
	}
	if got, want := CoverKey("evt-1", "kapak.png", now), "events/evt-1/cover/1718395200123-kapak.png"; got != want {
		t.Errorf("CoverKey() = %q, want %q", got, want)
	}
	if got := ObjectKey("../evt", "x.jpg", now); !strings.HasPrefix(got, "events/evt/") {
		t.Errorf("event id not sanitized: %q", got)
	}

	if !IsEventUploadKey("evt-1", "events/evt-1/1-x.jpg") {
		t.Error("upload key rejected")
	}
	for _, key := range []string{"events/evt-2/1-x.jpg", "events/evt-1/cover/1-x.jpg", "events/evt-1/"} {
		if IsEventUploadKey("evt-1", key) {
			t.Errorf("IsEventUploadKey accepted %q", key)
		}
	}
}

func TestMediaKindFor(t *testing.T) {
	if MediaKindFor(validate.MIMEVideoQuickTime) != photo.MediaVideo {
		t.Error("quicktime is not video")
	}
	if MediaKindFor(validate.MIMEImageHEIC) != photo.MediaImage {
		t.Error("heic is not image")
	}
}

type upperSanitizer struct{ calls int }

func (u *upperSanitizer) Sanitize(_ context.Context, data []byte, _ string) ([]byte, string) {
	u.calls++
	return bytes.ToUpper(data), validate.MIMEImageJPEG
}

func TestServiceUpload(t *testing.T) {
	store := NewMemoryStore("https://cdn.example.com/")
	sanitizer := &upperSanitizer{}
	svc := NewService(store, sanitizer, ServiceConfig{MaxSizeMB: 1})
	svc.timeNow = func() time.Time { return time.UnixMilli(42) }
	ctx := context.Background()

	obj, err := svc.Upload(ctx, "evt", "p.heic", "image/heic", strings.NewReader("pixels"), 6)
	if err != nil {
		t.Fatal(err)
	}
	if obj.Key != "events/evt/42-p.heic" || obj.URL != "https://cdn.example.com/events/evt/42-p.heic" {
		t.Errorf("object = %+v", obj)
	}
	if obj.ContentType != validate.MIMEImageJPEG || obj.Kind != photo.MediaImage {
		t.Errorf("sanitized type = %s, kind = %s", obj.ContentType, obj.Kind)
	}
	if data, _ := store.Get(obj.Key); string(data) != "PIXELS" {
		t.Errorf("stored %q", data)
	}

	if _, err := svc.Upload(ctx, "evt", "v.mp4", "video/mp4", strings.NewReader("frames"), 6); err != nil {
		t.Fatal(err)
	}
	if sanitizer.calls != 1 {
		t.Errorf("sanitizer called %d times, want images only", sanitizer.calls)
	}
}

func TestServiceUpload_Rejects(t *testing.T) {
	svc := NewService(NewMemoryStore("https://cdn"), nil, ServiceConfig{MaxSizeMB: 1})
	ctx := context.Background()
	big := int64(2 * 1024 * 1024)

	tests := []struct {
		name        string
		contentType string
		body        string
		size        int64
		wantErr     error
	}{
		{"gif", "image/gif", "x", 1, ErrUnsupportedType},
		{"pdf", "application/pdf", "x", 1, ErrUnsupportedType},
		{"declared too large", "image/png", "x", big, ErrFileTooLarge},
		{"declared empty", "image/png", "", 0, ErrEmptyFile},
		{"body larger than declared", "image/png", strings.Repeat("x", int(big)), 10, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, "evt", "f", tt.contentType, strings.NewReader(tt.body), tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Upload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := svc.UploadCover(ctx, "evt", "c.mp4", "video/mp4", strings.NewReader("x"), 1); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("video cover error = %v", err)
	}
}

func TestServicePresignAndComplete(t *testing.T) {
	store := NewMemoryStore("https://cdn")
	svc := NewService(store, nil, ServiceConfig{})
	ctx := context.Background()

	signed, err := svc.Presign(ctx, "evt", "clip.mov", "video/quicktime", 1024)
	if err != nil {
		t.Fatal(err)
	}
	if !IsEventUploadKey("evt", signed.Key) || signed.ExpiresAt.IsZero() {
		t.Errorf("signed = %+v", signed)
	}

	if _, err := svc.Complete(ctx, "evt", signed.Key); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Complete() before upload error = %v", err)
	}
	_ = store.Put(ctx, signed.Key, "video/quicktime", strings.NewReader("movie"), 5)

	obj, err := svc.Complete(ctx, "evt", signed.Key)
	if err != nil {
		t.Fatal(err)
	}
	if obj.Kind != photo.MediaVideo || obj.Size != 5 {
		t.Errorf("object = %+v", obj)
	}
	if _, err := svc.Complete(ctx, "other", signed.Key); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("foreign key error = %v", err)
	}
}

func TestMemoryStoreDeleteObjects(t *testing.T) {
	store := NewMemoryStore("https://cdn")
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_ = store.Put(ctx, k, "image/png", strings.NewReader(k), 1)
	}
	store.FailDeletes(true, "b")

	failed, err := store.DeleteObjects(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0] != "b" || store.Len() != 2 {
		t.Errorf("failed = %v, remaining = %d", failed, store.Len())
	}
}

func TestNewS3Store(t *testing.T) {
	valid := S3Config{
		Bucket:          "etkinlik-media",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		PublicBaseURL:   "https://media.example.com",
	}
	tests := []struct {
		name    string
		mutate  func(*S3Config)
		wantErr bool
	}{
		{"valid", func(*S3Config) {}, false},
		{"missing bucket", func(c *S3Config) { c.Bucket = "" }, true},
		{"missing key", func(c *S3Config) { c.AccessKeyID = "" }, true},
		{"missing secret", func(c *S3Config) { c.SecretAccessKey = "" }, true},
		{"missing public URL", func(c *S3Config) { c.PublicBaseURL = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewS3Store(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewS3Store() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestS3StorePresignPut(t *testing.T) {
	store, err := NewS3Store(S3Config{
		Bucket:          "etkinlik-media",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		Region:          "eu-central-1",
		PublicBaseURL:   "https://media.example.com/",
	})
	if err != nil {
		t.Fatal(err)
	}

	raw, err := store.PresignPut(context.Background(), "events/evt/1-a.jpg", "image/jpeg", 100, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "localhost:9000" || u.Path != "/etkinlik-media/events/evt/1-a.jpg" {
		t.Errorf("presigned URL = %s", raw)
	}
	if u.Query().Get("X-Amz-Signature") == "" || u.Query().Get("X-Amz-Expires") != "300" {
		t.Errorf("presigned URL missing signature params: %s", raw)
	}
	if got := store.PublicURL("events/evt/1-a.jpg"); got != "https://media.example.com/events/evt/1-a.jpg" {
		t.Errorf("PublicURL() = %s", got)
	}
}
