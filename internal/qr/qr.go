// Package qr renders event QR codes as PNG.
package qr

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Rendering limits in pixels.
const (
	DefaultSize = 512
	MinSize     = 128
	MaxSize     = 2048
)

var (
	// ErrEmptyURL is returned when there is nothing to encode.
	ErrEmptyURL = errors.New("QR code URL is required")
	// ErrInvalidColor is returned for colors that are not #RRGGBB.
	ErrInvalidColor = errors.New("invalid color, expected #RRGGBB")
	// ErrInvalidRecoveryLevel is returned for unknown recovery levels.
	ErrInvalidRecoveryLevel = errors.New("invalid recovery level")
	// ErrLowContrast is returned when the colors are too close to scan reliably.
	ErrLowContrast = errors.New("insufficient color contrast")
)

// Options describes a QR code.
type Options struct {
	URL string
	// Size is the PNG edge length, clamped to [MinSize, MaxSize]. 0 uses DefaultSize.
	Size int
	// Foreground and Background are #RRGGBB; empty means black on white.
	Foreground string
	Background string
	// RecoveryLevel is one of L, M, Q, H; empty means M.
	RecoveryLevel string
}

var recoveryLevels = map[string]qrcode.RecoveryLevel{
	"L": qrcode.Low,
	"M": qrcode.Medium,
	"Q": qrcode.High,
	"H": qrcode.Highest,
}

// EventURL returns the guest landing URL of an event.
func EventURL(publicAppURL, slug string) string {
	return strings.TrimRight(publicAppURL, "/") + "/e/" + slug
}

// Render returns the PNG encoding of opts.
func Render(opts Options) ([]byte, error) {
	if opts.URL == "" {
		return nil, ErrEmptyURL
	}

	level := qrcode.Medium
	if opts.RecoveryLevel != "" {
		l, ok := recoveryLevels[strings.ToUpper(opts.RecoveryLevel)]
		if !ok {
			return nil, ErrInvalidRecoveryLevel
		}
		level = l
	}

	fg, err := ParseHexColor(opts.Foreground, color.Black)
	if err != nil {
		return nil, err
	}
	bg, err := ParseHexColor(opts.Background, color.White)
	if err != nil {
		return nil, err
	}
	if ratio := ContrastRatio(fg, bg); ratio < MinContrast {
		return nil, fmt.Errorf("%w: %.2f:1, need %.1f:1", ErrLowContrast, ratio, MinContrast)
	}

	size := opts.Size
	switch {
	case size == 0:
		size = DefaultSize
	case size < MinSize:
		size = MinSize
	case size > MaxSize:
		size = MaxSize
	}

	code, err := qrcode.New(opts.URL, level)
	if err != nil {
		return nil, fmt.Errorf("encode QR code: %w", err)
	}
	code.ForegroundColor = fg
	code.BackgroundColor = bg
	png, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("render QR code: %w", err)
	}
	return png, nil
}

// ParseHexColor parses #RRGGBB (the # is optional). Empty input yields def.
func ParseHexColor(s string, def color.Color) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return def, nil
	}
	if len(s) != 6 {
		return nil, ErrInvalidColor
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, ErrInvalidColor
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
