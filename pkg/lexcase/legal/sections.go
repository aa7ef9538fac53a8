package legal

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SectionKind names a part of a judgment.
type SectionKind string

const (
	SectionPreamble          SectionKind = "preamble"
	SectionMainText          SectionKind = "main_text"
	SectionFacts             SectionKind = "facts"
	SectionReasoning         SectionKind = "reasoning"
	SectionFactsAndReasoning SectionKind = "facts_and_reasoning"
)

// Section is a headed part of a judgment. Start and End are byte offsets
// of the body, without its heading.
type Section struct {
	Kind  SectionKind `json:"kind"`
	Text  string      `json:"text"`
	Start int         `json:"start"`
	End   int         `json:"end"`
}

var headingRe = regexp.MustCompile(`(?:^|\s)(主\s?文|事\s?實\s?及\s?理\s?由|事\s?實|理\s?由)`)

type heading struct {
	kind       SectionKind
	start, end int
}

// Segment splits a judgment into 主文, 事實 and 理由 sections. A heading
// must stand alone: preceded by whitespace or the start of text and
// followed by whitespace or the end. Text before the first heading is a
// preamble section. Without any heading, Segment returns nil.
func Segment(text string) []Section {
	var hs []heading
	for _, m := range headingRe.FindAllStringSubmatchIndex(text, -1) {
		end := m[3]
		if end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(r) {
				continue
			}
		}
		hs = append(hs, heading{kind: headingKind(text[m[2]:m[3]]), start: m[2], end: end})
	}
	if len(hs) == 0 {
		return nil
	}

	var out []Section
	if s, ok := section(text, SectionPreamble, 0, hs[0].start); ok {
		out = append(out, s)
	}
	for i, h := range hs {
		stop := len(text)
		if i+1 < len(hs) {
			stop = hs[i+1].start
		}
		if s, ok := section(text, h.kind, h.end, stop); ok {
			out = append(out, s)
		}
	}
	return out
}

func headingKind(h string) SectionKind {
	h = strings.Join(strings.Fields(h), "")
	switch h {
	case "主文":
		return SectionMainText
	case "事實":
		return SectionFacts
	case "理由":
		return SectionReasoning
	default:
		return SectionFactsAndReasoning
	}
}

// section trims text[from:to] and reports whether anything is left.
func section(text string, kind SectionKind, from, to int) (Section, bool) {
	body := text[from:to]
	lead := len(body) - len(strings.TrimLeftFunc(body, unicode.IsSpace))
	body = strings.TrimSpace(body)
	if body == "" {
		return Section{}, false
	}
	start := from + lead
	return Section{Kind: kind, Text: body, Start: start, End: start + len(body)}, true
}
