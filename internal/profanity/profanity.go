// Package profanity masks blocklisted words in guest-written text.
//
// Matching tolerates leet-speak stand-ins (f4ck, $h1t), Turkish diacritics used as
// substitutes (şhit), letter repetition (fuuuck) and case. Matched spans are
// replaced rune for rune with '*', so the masked text has the same rune length as
// the input.
package profanity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mask replaces one rune of a matched span.
const Mask = '*'

// letterVariants lists, per letter, the runes that normalize to it.
var letterVariants = map[rune]string{
	'a': "a4@",
	'b': "b8",
	'c': "cç",
	'e': "e3",
	'g': "gğ9",
	'i': "i1!|ıİ",
	'o': "o0ö",
	's': "s5$ş",
	't': "t7+",
	'u': "uü",
}

// normalizeRune maps a stand-in rune to the letter it imitates. Both Turkish capital
// I forms are listed because unicode.ToLower maps 'I' to 'i' but leaves 'ı' alone.
var normalizeRune = func() map[rune]rune {
	m := make(map[rune]rune)
	for base, variants := range letterVariants {
		for _, v := range variants {
			m[v] = base
		}
	}
	m['I'] = 'i'
	return m
}()

// stemClass matches the tail of a stemmed term: letters plus the digit stand-ins.
// Punctuation stand-ins are left out so "bitch!" keeps its '!'.
var stemClass = func() string {
	var b strings.Builder
	b.WriteString(`[\pL`)
	for _, base := range "abcegiostu" {
		for _, v := range letterVariants[base] {
			if unicode.IsDigit(v) {
				b.WriteRune(v)
			}
		}
	}
	b.WriteString(`]*`)
	return b.String()
}()

// DefaultTerms is the built-in blocklist. A trailing '*' matches the term as a word
// stem: Turkish is agglutinative, so "orospu*" also covers "orospunun".
var DefaultTerms = []string{
	// English
	"fuck*", "shit*", "bitch*", "asshole*", "bastard*", "cunt*", "whore*", "slut*", "motherfucker*",
	// Turkish
	"siktir*", "sikerim", "sikeyim", "orospu*", "yarrak*", "amcık*", "pezevenk*", "yavşak*",
	"kahpe*", "gavat*", "şerefsiz*", "ibne*", "kaltak*",
}

// Normalize lowercases text, maps stand-in characters to the letters they imitate and
// collapses runs of the same character.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var prev rune = -1
	for _, r := range text {
		if base, ok := normalizeRune[r]; ok {
			r = base
		} else {
			r = unicode.ToLower(r)
			if base, ok := normalizeRune[r]; ok {
				r = base
			}
		}
		if r == prev {
			continue
		}
		prev = r
		b.WriteRune(r)
	}
	return b.String()
}

type term struct {
	normalized string
	pattern    *regexp.Regexp
}

// Filter masks a fixed set of terms. It is immutable and safe for concurrent use.
type Filter struct {
	terms []term
}

// New compiles a Filter for terms. Terms use the DefaultTerms syntax.
func New(terms []string) (*Filter, error) {
	f := &Filter{}
	for _, raw := range terms {
		stem := strings.HasSuffix(raw, "*")
		word := Normalize(strings.TrimSuffix(raw, "*"))
		if word == "" {
			continue
		}

		var expr strings.Builder
		expr.WriteString("(?i)")
		for _, r := range word {
			expr.WriteString(letterClass(r))
			expr.WriteByte('+')
		}
		if stem {
			expr.WriteString(stemClass)
		}

		re, err := regexp.Compile(expr.String())
		if err != nil {
			return nil, fmt.Errorf("compile term %q: %w", raw, err)
		}
		f.terms = append(f.terms, term{normalized: word, pattern: re})
	}
	return f, nil
}

func letterClass(base rune) string {
	variants, ok := letterVariants[base]
	if !ok {
		return "[" + regexp.QuoteMeta(string(base)) + "]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for _, v := range variants {
		b.WriteString(regexp.QuoteMeta(string(v)))
	}
	b.WriteByte(']')
	return b.String()
}

// Contains reports whether text contains a blocklisted word.
func (f *Filter) Contains(text string) bool {
	return f.Filter(text) != text
}

// Filter returns text with every blocklisted word masked. Text without any candidate
// term after normalization is returned unchanged.
func (f *Filter) Filter(text string) string {
	normalized := Normalize(text)
	var candidates []term
	for _, t := range f.terms {
		if strings.Contains(normalized, t.normalized) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return text
	}

	var spans [][2]int
	for _, t := range candidates {
		for _, loc := range t.pattern.FindAllStringIndex(text, -1) {
			if standalone(text, loc[0], loc[1]) {
				spans = append(spans, [2]int{loc[0], loc[1]})
			}
		}
	}
	if len(spans) == 0 {
		return text
	}
	return mask(text, spans)
}

// standalone reports whether text[start:end] is not embedded in a longer word.
func standalone(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// mask replaces every rune inside spans with Mask. Spans may overlap.
func mask(text string, spans [][2]int) string {
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range text {
		masked := false
		for _, sp := range spans {
			if i >= sp[0] && i < sp[1] {
				masked = true
				break
			}
		}
		if masked {
			b.WriteRune(Mask)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var defaultFilter = func() *Filter {
	f, err := New(DefaultTerms)
	if err != nil {
		panic(err)
	}
	return f
}()

// Default returns the Filter built from DefaultTerms.
func Default() *Filter {
	return defaultFilter
}

// Clean masks text with the default blocklist.
func Clean(text string) string {
	return defaultFilter.Filter(text)
}

// Contains reports whether text contains a word from the default blocklist.
func Contains(text string) bool {
	return defaultFilter.Contains(text)
}
