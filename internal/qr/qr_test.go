package qr

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func TestRender(t *testing.T) {
	data, err := Render(Options{URL: EventURL("https://etkinlikqr.com/", "dugun-abc123"), Size: 256, Foreground: "#1A2B3C"})
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("size = %dx%d, want 256x256", b.Dx(), b.Dy())
	}
}

func TestRender_ClampsSize(t *testing.T) {
	data, err := Render(Options{URL: "https://etkinlikqr.com/e/x", Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	img, _ := png.Decode(bytes.NewReader(data))
	if img.Bounds().Dx() != MinSize {
		t.Errorf("width = %d, want %d", img.Bounds().Dx(), MinSize)
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"empty url", Options{}, ErrEmptyURL},
		{"bad color", Options{URL: "u", Background: "#fff"}, ErrInvalidColor},
		{"bad hex", Options{URL: "u", Foreground: "#zzzzzz"}, ErrInvalidColor},
		{"bad level", Options{URL: "u", RecoveryLevel: "X"}, ErrInvalidRecoveryLevel},
		{"low contrast", Options{URL: "u", Foreground: "#DDDDDD", Background: "#FFFFFF"}, ErrLowContrast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Render(tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("Render() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FF8000", color.Black)
	if err != nil {
		t.Fatal(err)
	}
	if c != (color.RGBA{R: 0xff, G: 0x80, B: 0x00, A: 0xff}) {
		t.Errorf("color = %v", c)
	}
	if c, _ := ParseHexColor("", color.White); c != color.White {
		t.Errorf("default = %v", c)
	}
}

func TestEventURL(t *testing.T) {
	if got := EventURL("https://etkinlikqr.com/", "a"); got != "https://etkinlikqr.com/e/a" {
		t.Errorf("EventURL() = %s", got)
	}
}

func TestContrastRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b color.Color
		want float64
	}{
		{"black on white", color.Black, color.White, 21},
		{"same color", color.White, color.White, 1},
		{"order independent", color.White, color.Black, 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContrastRatio(tt.a, tt.b); math.Abs(got-tt.want) > 0.01 {
				t.Errorf("ContrastRatio() = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}
