package validate

import (
	"errors"
	"fmt"
	"strings"
)

// File validation errors
var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileEmpty       = errors.New("file is empty")
)

// Accepted media types for guest uploads and event covers.
const (
	MIMEImageJPEG      = "image/jpeg"
	MIMEImagePNG       = "image/png"
	MIMEImageWebP      = "image/webp"
	MIMEImageHEIC      = "image/heic"
	MIMEVideoMP4       = "video/mp4"
	MIMEVideoQuickTime = "video/quicktime"
	MIMEVideoWebM      = "video/webm"
)

// AllowedImageTypes defines allowed image MIME types.
var AllowedImageTypes = []string{MIMEImageJPEG, MIMEImagePNG, MIMEImageWebP, MIMEImageHEIC}

// AllowedVideoTypes defines allowed video MIME types.
var AllowedVideoTypes = []string{MIMEVideoMP4, MIMEVideoQuickTime, MIMEVideoWebM}

// AllowedMediaTypes is the union accepted for guest uploads.
var AllowedMediaTypes = append(append([]string{}, AllowedImageTypes...), AllowedVideoTypes...)

// MIMEType normalizes mimeType (lowercase, parameters stripped) and checks it
// against allowedTypes.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		return "", ErrEmpty
	}

	for _, allowed := range allowedTypes {
		if mimeType == allowed {
			return mimeType, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in allowed types", ErrInvalidMIMEType, mimeType)
}

// FileSize checks 0 < sizeBytes <= maxBytes. maxBytes <= 0 disables the upper bound.
func FileSize(sizeBytes, maxBytes int64) error {
	if sizeBytes <= 0 {
		return ErrFileEmpty
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, maxBytes)
	}
	return nil
}

// MediaFile validates a guest upload's type and size.
func MediaFile(mimeType string, sizeBytes, maxBytes int64) (string, error) {
	validated, err := MIMEType(mimeType, AllowedMediaTypes)
	if err != nil {
		return "", err
	}
	if err := FileSize(sizeBytes, maxBytes); err != nil {
		return "", err
	}
	return validated, nil
}

// IsVideo reports whether a validated MIME type is a video type.
func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}
