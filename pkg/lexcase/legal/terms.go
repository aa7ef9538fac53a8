package legal

import (
	"strings"
	"unicode/utf8"
)

// DictEntry maps variants of a term to its canonical form.
type DictEntry struct {
	Canonical string
	Variants  []string
	Category  string
}

// DefaultEntries is the built-in terminology mapping.
var DefaultEntries = []DictEntry{
	{Canonical: "支付", Variants: []string{"給付"}, Category: "general"},
	{Canonical: "要求", Variants: []string{"請求"}, Category: "general"},
	{Canonical: "表示", Variants: []string{"陳稱"}, Category: "general"},
	{Canonical: "爭議", Variants: []string{"系爭"}, Category: "general"},
	{Canonical: "雙方", Variants: []string{"兩造"}, Category: "general"},
}

// Dictionary replaces term variants with canonical forms using greedy
// longest match.
type Dictionary struct {
	dict     map[string]DictEntry
	maxRunes int
}

// NewDictionary builds a dictionary. Later entries win on conflicting
// variants.
func NewDictionary(entries []DictEntry) *Dictionary {
	d := &Dictionary{dict: make(map[string]DictEntry)}
	for _, e := range entries {
		for _, v := range e.Variants {
			if v == "" || v == e.Canonical {
				continue
			}
			d.dict[v] = e
			if n := utf8.RuneCountInString(v); n > d.maxRunes {
				d.maxRunes = n
			}
		}
	}
	return d
}

// DefaultDictionary returns a Dictionary over DefaultEntries.
func DefaultDictionary() *Dictionary {
	return NewDictionary(DefaultEntries)
}

// Len returns the number of variants.
func (d *Dictionary) Len() int { return len(d.dict) }

// Standard returns the canonical form of term, or term itself.
func (d *Dictionary) Standard(term string) string {
	if e, ok := d.dict[term]; ok {
		return e.Canonical
	}
	return term
}

// Standardize rewrites every variant in text to its canonical form and
// reports one Term per distinct variant found, in order of first
// appearance.
func (d *Dictionary) Standardize(text string) (string, []Term) {
	if len(d.dict) == 0 {
		return text, nil
	}

	var (
		b     strings.Builder
		terms []Term
		index = make(map[string]int)
	)
	b.Grow(len(text))
	for i := 0; i < len(text); {
		original, entry, ok := d.longestAt(text[i:])
		if !ok {
			_, w := utf8.DecodeRuneInString(text[i:])
			b.WriteString(text[i : i+w])
			i += w
			continue
		}
		b.WriteString(entry.Canonical)
		if j, seen := index[original]; seen {
			terms[j].Count++
		} else {
			index[original] = len(terms)
			terms = append(terms, Term{
				Original:   original,
				Standard:   entry.Canonical,
				Category:   entry.Category,
				Confidence: 1.0,
				Count:      1,
			})
		}
		i += len(original)
	}
	return b.String(), terms
}

// longestAt finds the longest variant that prefixes s.
func (d *Dictionary) longestAt(s string) (string, DictEntry, bool) {
	ends := make([]int, 0, d.maxRunes)
	for pos, r := range s {
		if len(ends) == d.maxRunes {
			break
		}
		ends = append(ends, pos+utf8.RuneLen(r))
	}
	for n := len(ends); n > 0; n-- {
		candidate := s[:ends[n-1]]
		if e, ok := d.dict[candidate]; ok {
			return candidate, e, true
		}
	}
	return "", DictEntry{}, false
}
