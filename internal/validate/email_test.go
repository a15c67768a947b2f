package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"normalized", "  Ayse@Example.COM ", "ayse@example.com", nil},
		{"plus address", "org+wedding@example.com.tr", "org+wedding@example.com.tr", nil},
		{"empty", "", "", ErrEmpty},
		{"missing at", "ayse.example.com", "", ErrInvalidEmail},
		{"missing tld", "ayse@example", "", ErrInvalidEmail},
		{"double dot domain", "ayse@example..com", "", ErrInvalidEmail},
		{"local part too long", strings.Repeat("a", 65) + "@example.com", "", ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Email(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Email() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Email() = %q, want %q", got, tt.want)
			}
		})
	}
}
