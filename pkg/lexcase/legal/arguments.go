package legal

import (
	"regexp"
	"sort"
	"strings"
)

type argumentMarker struct {
	typ ArgumentType
	re  *regexp.Regexp
}

var argumentMarkerWords = []struct {
	word string
	typ  ArgumentType
}{
	{"主張", Claim},
	{"請求", Request},
	{"抗辯", Rebuttal},
}

// newArgumentMarkers compiles one pattern per marker. Each marker also
// matches its standardized form so arguments are found after term
// standardization.
func newArgumentMarkers(dict *Dictionary) []argumentMarker {
	markers := make([]argumentMarker, 0, len(argumentMarkerWords))
	for _, m := range argumentMarkerWords {
		alts := []string{regexp.QuoteMeta(m.word)}
		if std := dict.Standard(m.word); std != m.word {
			alts = append(alts, regexp.QuoteMeta(std))
		}
		re := regexp.MustCompile(`(?:` + strings.Join(alts, "|") + `)[：:\s]*([^。]+)`)
		markers = append(markers, argumentMarker{typ: m.typ, re: re})
	}
	return markers
}

func extractArguments(text string, markers []argumentMarker) []Argument {
	var out []Argument
	for _, m := range markers {
		for _, loc := range m.re.FindAllStringSubmatchIndex(text, -1) {
			span := strings.TrimSpace(text[loc[2]:loc[3]])
			if span == "" {
				continue
			}
			cites := ExtractCitations(span)
			strength := 0.5
			if len(cites) > 0 {
				strength = 0.8
			}
			out = append(out, Argument{
				Text:      span,
				Type:      m.typ,
				Strength:  strength,
				Citations: cites,
				Start:     loc[2],
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
