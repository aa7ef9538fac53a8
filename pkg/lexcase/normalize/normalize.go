// Package normalize cleans raw legal text before any other stage sees it.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize collapses whitespace and control runs to a single space, drops
// runes outside the permitted script set and trims both ends.
// It is total: the empty string normalizes to the empty string.
func Normalize(raw string) string {
	s := norm.NFC.String(raw)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r):
			// dropped without acting as a separator
		case Permitted(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Permitted reports whether r survives normalization.
func Permitted(r rune) bool {
	switch {
	case r < 0x80:
		return unicode.IsPrint(r)
	case unicode.Is(unicode.Han, r):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // halfwidth and fullwidth forms
		return true
	case r >= 0x2010 && r <= 0x2027: // dashes, quotes, ellipsis
		return true
	}
	return false
}

// IsTerminator reports whether r ends a sentence unconditionally.
func IsTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '!', '?', ';':
		return true
	}
	return false
}

// Sentences splits text into contiguous sentence-like units. Each unit keeps
// its terminator, so concatenating the result gives back text exactly.
// A full stop only ends a unit when followed by whitespace or the end of text.
func Sentences(text string) []string {
	var units []string
	start := 0
	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		next := i + w
		end := IsTerminator(r)
		if r == '.' {
			if next >= len(text) {
				end = true
			} else {
				nr, _ := utf8.DecodeRuneInString(text[next:])
				end = unicode.IsSpace(nr)
			}
		}
		if end {
			units = append(units, text[start:next])
			start = next
		}
		i = next
	}
	if start < len(text) {
		units = append(units, text[start:])
	}
	return units
}
