package validate

import (
	"errors"
	"testing"
)

func TestMediaFile(t *testing.T) {
	const max = 50 << 20

	tests := []struct {
		name    string
		mime    string
		size    int64
		want    string
		wantErr error
	}{
		{"jpeg", "image/jpeg", 1024, "image/jpeg", nil},
		{"mixed case with params", "Video/MP4; codecs=avc1", 1024, "video/mp4", nil},
		{"heic", "image/heic", 1024, "image/heic", nil},
		{"quicktime", "video/quicktime", 1024, "video/quicktime", nil},
		{"gif rejected", "image/gif", 1024, "", ErrInvalidMIMEType},
		{"pdf rejected", "application/pdf", 1024, "", ErrInvalidMIMEType},
		{"empty type", "", 1024, "", ErrEmpty},
		{"empty file", "image/png", 0, "", ErrFileEmpty},
		{"too large", "image/png", max + 1, "", ErrFileTooLarge},
		{"exactly max", "image/png", max, "image/png", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MediaFile(tt.mime, tt.size, max)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MediaFile() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MediaFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsVideo(t *testing.T) {
	if !IsVideo(MIMEVideoWebM) {
		t.Error("webm should be a video")
	}
	if IsVideo(MIMEImageWebP) {
		t.Error("webp should not be a video")
	}
}
