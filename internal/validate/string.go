// Package validate provides input validation for organizer forms and guest
// submissions. Violations are reported as user-facing form messages.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
// Lengths count runes, so Turkish letters count as one character.
type StringConstraints struct {
	MinLength      int
	MaxLength      int
	AllowedPattern *regexp.Regexp
	AllowEmpty     bool
	TrimSpace      bool
	// AllowNewlines keeps \n in multi-line fields; other control characters are
	// always rejected.
	AllowNewlines bool
}

// String validates s against constraints and returns the (optionally trimmed) value.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}
	for _, r := range s {
		if r == '\n' && constraints.AllowNewlines {
			continue
		}
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
		}
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// EventName validates an event name: 1-120 characters.
func EventName(name string) (string, error) {
	return String(name, StringConstraints{MinLength: 1, MaxLength: 120, TrimSpace: true})
}

// Description validates an optional description of up to 2000 characters.
func Description(desc string) (string, error) {
	return String(desc, StringConstraints{MaxLength: 2000, AllowEmpty: true, TrimSpace: true, AllowNewlines: true})
}

// DisplayName validates an organizer display name: 1-80 characters.
func DisplayName(name string) (string, error) {
	return String(name, StringConstraints{MinLength: 1, MaxLength: 80, TrimSpace: true})
}

// MissionTitle validates a photo mission title: 1-100 characters.
func MissionTitle(title string) (string, error) {
	return String(title, StringConstraints{MinLength: 1, MaxLength: 100, TrimSpace: true})
}

// CommentContent validates guest comment text: 1-500 characters.
func CommentContent(content string) (string, error) {
	return String(content, StringConstraints{MinLength: 1, MaxLength: 500, TrimSpace: true, AllowNewlines: true})
}

// AuthorName validates the optional name a guest signs a comment with.
func AuthorName(name string) (string, error) {
	return String(name, StringConstraints{MaxLength: 40, AllowEmpty: true, TrimSpace: true})
}
