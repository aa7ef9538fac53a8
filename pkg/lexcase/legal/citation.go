package legal

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// contextRunes is the size of the window kept on each side of a citation.
const contextRunes = 100

const numeral = `[0-9零〇一二三四五六七八九十百千兩]+`

var (
	caseCitationRe = regexp.MustCompile(
		`(\p{Han}{0,12}?(?:法院|分院|法庭|地院|高院))\s*(\d{2,4})\s*年度?\s*(?:(\p{Han}{1,4})字)?\s*第?\s*(\d+)\s*號`)
	statuteCitationRe = regexp.MustCompile(
		`(\p{Han}{1,20}?(?:法|條例|規則|辦法|通則))第(` + numeral + `)條(?:之` + numeral + `)?` +
			`(?:第(` + numeral + `)項)?(?:第(` + numeral + `)款)?`)
)

// leadIns are words that commonly precede a court or law name and got
// swallowed by the name pattern.
var leadIns = []string{
	"依據", "依照", "參照", "參見", "參酌", "適用", "準用", "違反", "觸犯", "援引", "引用", "認為",
	"本院", "業經", "關於",
	"依", "據", "按", "經", "見", "及", "暨", "與", "、",
}

// trimLeadIn cuts name after the last lead-in word, keeping at least two
// runes of name.
func trimLeadIn(name string) (string, int) {
	cut := 0
	for _, w := range leadIns {
		i := strings.LastIndex(name, w)
		if i < 0 {
			continue
		}
		end := i + len(w)
		if end > cut && utf8.RuneCountInString(name[end:]) >= 2 {
			cut = end
		}
	}
	return name[cut:], cut
}

// ExtractCitations finds case and statute citations in text, ordered by
// position.
func ExtractCitations(text string) []Citation {
	var out []Citation
	for _, m := range caseCitationRe.FindAllStringSubmatchIndex(text, -1) {
		court, cut := trimLeadIn(text[m[2]:m[3]])
		start := m[0] + cut
		c := Citation{
			Kind:   CaseCitation,
			Court:  court,
			Year:   parseNumber(text[m[4]:m[5]]),
			Number: parseNumber(text[m[8]:m[9]]),
			Text:   text[start:m[1]],
			Start:  start,
			End:    m[1],
		}
		if m[6] >= 0 {
			c.Word = text[m[6]:m[7]]
		}
		c.Context = contextWindow(text, c.Start, c.End, contextRunes)
		out = append(out, c)
	}

	for _, m := range statuteCitationRe.FindAllStringSubmatchIndex(text, -1) {
		law, cut := trimLeadIn(text[m[2]:m[3]])
		start := m[0] + cut
		if overlapsAny(out, start, m[1]) {
			continue
		}
		c := Citation{
			Kind:    StatuteCitation,
			Law:     law,
			Article: parseNumber(text[m[4]:m[5]]),
			Text:    text[start:m[1]],
			Start:   start,
			End:     m[1],
		}
		if m[6] >= 0 {
			c.Paragraph = parseNumber(text[m[6]:m[7]])
		}
		if m[8] >= 0 {
			c.Subparagraph = parseNumber(text[m[8]:m[9]])
		}
		c.Context = contextWindow(text, c.Start, c.End, contextRunes)
		out = append(out, c)
	}

	sortByStart(out)
	return out
}

func overlapsAny(cs []Citation, start, end int) bool {
	for _, c := range cs {
		if start < c.End && c.Start < end {
			return true
		}
	}
	return false
}

func sortByStart(cs []Citation) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Start < cs[j].Start })
}

// contextWindow returns up to n runes on each side of text[start:end].
func contextWindow(text string, start, end, n int) string {
	from := start
	for i := 0; i < n && from > 0; i++ {
		_, w := utf8.DecodeLastRuneInString(text[:from])
		from -= w
	}
	to := end
	for i := 0; i < n && to < len(text); i++ {
		_, w := utf8.DecodeRuneInString(text[to:])
		to += w
	}
	return text[from:to]
}
