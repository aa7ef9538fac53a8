package legal

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var dateRe = regexp.MustCompile(`((?:中華)?民國)?\s*(\d{2,4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日([^。]*)`)

func buildTimeline(text string) []TimelineEntry {
	var out []TimelineEntry
	for _, m := range dateRe.FindAllStringSubmatchIndex(text, -1) {
		year, _ := strconv.Atoi(text[m[4]:m[5]])
		month, _ := strconv.Atoi(text[m[6]:m[7]])
		day, _ := strconv.Atoi(text[m[8]:m[9]])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		date := CaseDate{Year: year, Month: month, Day: day, ROC: m[2] >= 0 || year < 1000}

		var parties []string
		seen := make(map[string]bool)
		for _, pm := range findPartyMentions(enclosingSentence(text, m[0], m[1])) {
			if !seen[pm.name] {
				seen[pm.name] = true
				parties = append(parties, pm.name)
			}
		}
		importance := 0.5
		if len(parties) > 0 {
			importance = 0.7
		}
		out = append(out, TimelineEntry{
			Date:       date,
			Event:      strings.TrimSpace(text[m[10]:m[11]]),
			Importance: importance,
			Parties:    parties,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Gregorian().Before(out[j].Date.Gregorian())
	})
	return out
}

// enclosingSentence returns the 。-delimited sentence containing
// text[start:end].
func enclosingSentence(text string, start, end int) string {
	from := strings.LastIndex(text[:start], "。")
	if from < 0 {
		from = 0
	} else {
		from += len("。")
	}
	to := strings.Index(text[end:], "。")
	if to < 0 {
		to = len(text)
	} else {
		to += end
	}
	return text[from:to]
}
