package validate

import (
	"errors"
	"fmt"
)

// Password errors
var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password is too long")
)

// Password length bounds. bcrypt ignores input beyond 72 bytes, so longer
// passwords are rejected rather than silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// Password checks the length bounds of a new organizer password.
func Password(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("%w: need at least %d characters", ErrPasswordTooShort, MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("%w: maximum is %d bytes", ErrPasswordTooLong, MaxPasswordBytes)
	}
	return nil
}
