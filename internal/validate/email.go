package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail is returned for malformed email addresses.
var ErrInvalidEmail = errors.New("invalid email format")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validates an email address and returns it lowercased and trimmed.
// Organizer accounts are keyed by this normalized form.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" {
		return "", ErrEmpty
	}
	if len(email) > 254 {
		return "", ErrStringTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	localPart, domain, _ := strings.Cut(email, "@")
	if len(localPart) > 64 || len(domain) > 255 {
		return "", ErrStringTooLong
	}
	if strings.Contains(domain, "..") || strings.HasPrefix(domain, ".") {
		return "", ErrInvalidEmail
	}

	return email, nil
}
