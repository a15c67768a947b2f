package image

import (
	"bytes"
	"context"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestSanitize_StripsMetadata(t *testing.T) {
	s := NewSanitizer(DefaultConfig(), nil)
	out, contentType := s.Sanitize(context.Background(), testJPEG(t, 100, 60), validate.MIMEImageJPEG)

	if contentType != validate.MIMEImageJPEG {
		t.Errorf("content type = %s", contentType)
	}
	noEXIF, err := VerifyNoEXIF(out)
	if err != nil {
		t.Fatal(err)
	}
	if !noEXIF {
		t.Error("EXIF metadata still present")
	}
}

func TestSanitize_BoundsLongestEdge(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 200, 100, 50, 25},
		{"portrait", 100, 200, 25, 50},
		{"already small", 40, 30, 40, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSanitizer(Config{Quality: 80, MaxEdge: 50}, nil)
			out, _ := s.Sanitize(context.Background(), testJPEG(t, tt.w, tt.h), validate.MIMEImageJPEG)
			w, h, err := Size(out)
			if err != nil {
				t.Fatal(err)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestSanitize_PassThrough(t *testing.T) {
	s := NewSanitizer(DefaultConfig(), nil)

	video := []byte("\x00\x00\x00\x18ftypmp42")
	if out, ct := s.Sanitize(context.Background(), video, validate.MIMEVideoMP4); !bytes.Equal(out, video) || ct != validate.MIMEVideoMP4 {
		t.Error("video was modified")
	}

	garbage := []byte("not an image")
	if out, ct := s.Sanitize(context.Background(), garbage, validate.MIMEImagePNG); !bytes.Equal(out, garbage) || ct != validate.MIMEImagePNG {
		t.Error("undecodable image was not kept as is")
	}
}
