// Package image strips metadata from uploaded photos and bounds their size.
package image

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/h2non/bimg"

	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

// Config holds sanitizer settings.
type Config struct {
	// Quality for JPEG/WebP encoding (1-100).
	Quality int
	// MaxEdge bounds the longest side in pixels; 0 disables resizing.
	MaxEdge int
}

// DefaultMaxEdge is the longest edge kept for guest photos.
const DefaultMaxEdge = 2560

// DefaultConfig returns the settings used for guest uploads.
func DefaultConfig() Config {
	return Config{Quality: 85, MaxEdge: DefaultMaxEdge}
}

// Sanitizer re-encodes images without EXIF/GPS metadata.
type Sanitizer struct {
	config Config
	logger *slog.Logger
}

// NewSanitizer creates a Sanitizer. A nil logger uses slog.Default().
func NewSanitizer(config Config, logger *slog.Logger) *Sanitizer {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 85
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{config: config, logger: logger}
}

// Sanitize returns cleaned image bytes and their content type. Videos pass through
// untouched. When processing fails the original bytes are returned and a warning is
// logged, so an upload is never lost to a codec problem.
func (s *Sanitizer) Sanitize(ctx context.Context, data []byte, contentType string) ([]byte, string) {
	if validate.IsVideo(contentType) {
		return data, contentType
	}
	out, outType, err := s.process(data)
	if err != nil {
		s.logger.WarnContext(ctx, "image sanitizing failed, storing original", "content_type", contentType, "size", len(data), "error", err)
		return data, contentType
	}
	return out, outType
}

func (s *Sanitizer) process(data []byte) ([]byte, string, error) {
	img := bimg.NewImage(data)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, "", fmt.Errorf("read image metadata: %w", err)
	}

	// bimg auto-rotates from the EXIF orientation before metadata is dropped.
	options := bimg.Options{
		Quality:       s.config.Quality,
		StripMetadata: true,
	}

	outType := validate.MIMEImageJPEG
	switch metadata.Type {
	case "png":
		options.Type, outType = bimg.PNG, validate.MIMEImagePNG
	case "webp":
		options.Type, outType = bimg.WEBP, validate.MIMEImageWebP
	default:
		// JPEG stays JPEG; HEIC is converted since most browsers cannot show it.
		options.Type = bimg.JPEG
	}

	if limit := s.config.MaxEdge; limit > 0 {
		w, h := metadata.Size.Width, metadata.Size.Height
		if w >= h && w > limit {
			options.Width = limit
		} else if h > w && h > limit {
			options.Height = limit
		}
	}

	out, err := img.Process(options)
	if err != nil {
		return nil, "", fmt.Errorf("process image: %w", err)
	}
	return out, outType, nil
}

// VerifyNoEXIF reports whether imageBytes carries no camera or GPS metadata.
func VerifyNoEXIF(imageBytes []byte) (bool, error) {
	metadata, err := bimg.NewImage(imageBytes).Metadata()
	if err != nil {
		return false, fmt.Errorf("read image metadata: %w", err)
	}
	exif := metadata.EXIF
	hasEXIF := exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != ""
	return !hasEXIF, nil
}

// Size returns the pixel dimensions of an encoded image.
func Size(imageBytes []byte) (width, height int, err error) {
	size, err := bimg.NewImage(imageBytes).Size()
	if err != nil {
		return 0, 0, err
	}
	return size.Width, size.Height, nil
}
