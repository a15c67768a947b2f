package event

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	slugSuffixLength = 6
	slugAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxSlugBaseRunes = 48
	// MaxSlugAttempts bounds slug regeneration on collision.
	MaxSlugAttempts = 5
)

var turkishLower = cases.Lower(language.Turkish)

// Slugify lowercases name with Turkish casing rules, strips diacritics and joins
// the remaining ASCII letters and digits with '-'. "Düğün Şöleni" becomes "dugun-soleni".
func Slugify(name string) string {
	lowered := turkishLower.String(name)
	// Dotless i has no decomposition.
	lowered = strings.ReplaceAll(lowered, "ı", "i")

	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), lowered)
	if err != nil {
		stripped = lowered
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range stripped {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
		if b.Len() >= maxSlugBaseRunes {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

// NewSlug returns Slugify(name) with a random suffix, e.g. "yaz-partisi-x1y2z3".
func NewSlug(name string) string {
	base := Slugify(name)
	suffix := randomSuffix()
	if base == "" {
		return "etkinlik-" + suffix
	}
	return base + "-" + suffix
}

func randomSuffix() string {
	buf := make([]byte, slugSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	for i := range buf {
		buf[i] = slugAlphabet[int(buf[i])%len(slugAlphabet)]
	}
	return string(buf)
}

// CreateWithSlug assigns e a fresh slug derived from its name and inserts it,
// regenerating the slug on collision.
func CreateWithSlug(ctx context.Context, repo Repository, e *Event) error {
	var err error
	for attempt := 0; attempt < MaxSlugAttempts; attempt++ {
		e.Slug = NewSlug(e.Name)
		err = repo.Create(ctx, e)
		if !errors.Is(err, ErrSlugTaken) {
			return err
		}
	}
	return fmt.Errorf("create event after %d slug attempts: %w", MaxSlugAttempts, err)
}
