package legal

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/cognicore/lexcase/pkg/lexcase/document"
)

// Court levels.
const (
	SupremeCourt  = "supreme"
	HighCourt     = "high"
	DistrictCourt = "district"
	SpecialCourt  = "special"
)

// Extra keys written by Facts.Fill.
const (
	CourtLevelKey    = "court_level"
	LawReferencesKey = "law_references"
)

// Facts are document metadata read from the text itself.
type Facts struct {
	CaseNumber string
	CaseType   string
	Court      string
	CourtLevel string
	// Date is the judgment date; zero Year when none was found.
	Date    CaseDate
	LawRefs []string
}

var (
	caseNumberRe   = regexp.MustCompile(`(\d{2,3})\s*年度\s*(\p{Han}{1,4})字\s*第\s*(\d+)\s*號`)
	caseTypeRe     = regexp.MustCompile(`(民事|刑事|行政|家事|少年)\p{Han}{0,4}?(?:判決|裁定)`)
	judgmentDateRe = regexp.MustCompile(`中華民國\s*(\d{2,3})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	courtRe        = regexp.MustCompile(
		`最高行政法院|最高法院|智慧財產(?:及商業)?法院|\p{Han}{2}高等行政法院|[臺台]灣高等法院(?:\p{Han}{2,4}分院)?|(?:[臺台]灣|福建)?\p{Han}{2}地方法院`)
)

// ExtractMetadata reads the case number, case type, court, judgment date
// and statute references from text. The judgment date is the last
// 中華民國 date, which closes a judgment; failing that, the first date.
func ExtractMetadata(text string) Facts {
	var f Facts
	if m := caseNumberRe.FindStringSubmatch(text); m != nil {
		f.CaseNumber = fmt.Sprintf("%s年度%s字第%s號", m[1], m[2], m[3])
	}
	if m := caseTypeRe.FindStringSubmatch(text); m != nil {
		f.CaseType = m[1]
	}
	if court := courtRe.FindString(text); court != "" {
		f.Court = court
		f.CourtLevel = courtLevel(court)
	}

	if ms := judgmentDateRe.FindAllStringSubmatch(text, -1); len(ms) > 0 {
		m := ms[len(ms)-1]
		f.Date = caseDate(m[1], m[2], m[3], true)
	} else if m := dateRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[2])
		f.Date = caseDate(m[2], m[3], m[4], m[1] != "" || year < 1000)
	}

	seen := make(map[string]bool)
	for _, c := range ExtractCitations(text) {
		if c.Kind == StatuteCitation && !seen[c.Text] {
			seen[c.Text] = true
			f.LawRefs = append(f.LawRefs, c.Text)
		}
	}
	return f
}

func caseDate(y, m, d string, roc bool) CaseDate {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return CaseDate{}
	}
	return CaseDate{Year: year, Month: month, Day: day, ROC: roc}
}

func courtLevel(court string) string {
	switch {
	case strings.HasPrefix(court, "最高"):
		return SupremeCourt
	case strings.Contains(court, "高等"):
		return HighCourt
	case strings.HasSuffix(court, "地方法院"):
		return DistrictCourt
	default:
		return SpecialCourt
	}
}

// Fill returns md with its empty fields taken from f. A court or case type
// of "unknown" counts as empty; a date supplied but unparsable does not.
func (f Facts) Fill(md document.Metadata) document.Metadata {
	if md.CaseNumber == "" {
		md.CaseNumber = f.CaseNumber
	}
	if isUnset(md.CaseType) && f.CaseType != "" {
		md.CaseType = f.CaseType
	}
	if isUnset(md.Court) && f.Court != "" {
		md.Court = f.Court
	}
	if md.Date.IsZero() && md.Extra[document.RawDateKey] == "" && f.Date.Year > 0 {
		md.Date = f.Date.Gregorian()
	}

	extra := map[string]string{}
	if f.CourtLevel != "" {
		extra[CourtLevelKey] = f.CourtLevel
	}
	if len(f.LawRefs) > 0 {
		extra[LawReferencesKey] = strings.Join(f.LawRefs, ",")
	}
	if len(extra) > 0 {
		merged := maps.Clone(md.Extra)
		if merged == nil {
			merged = make(map[string]string, len(extra))
		}
		for k, v := range extra {
			if merged[k] == "" {
				merged[k] = v
			}
		}
		md.Extra = merged
	}
	return md
}

func isUnset(s string) bool {
	return s == "" || s == "unknown"
}
