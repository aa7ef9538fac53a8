// Package legal extracts citations, standardized terms, arguments, a dated
// timeline, parties, judgment sections and metadata from legal-case text.
package legal

import (
	"fmt"
	"time"
)

// CitationKind distinguishes case citations from statute citations.
type CitationKind string

const (
	CaseCitation    CitationKind = "case"
	StatuteCitation CitationKind = "statute"
)

// Citation is a reference to a prior case or a statute article.
// Start and End are byte offsets into the text it was extracted from.
type Citation struct {
	Kind CitationKind `json:"kind"`

	Court  string `json:"court,omitempty"`
	Year   int    `json:"year,omitempty"`
	Word   string `json:"word,omitempty"`
	Number int    `json:"number,omitempty"`

	Law          string `json:"law,omitempty"`
	Article      int    `json:"article,omitempty"`
	Paragraph    int    `json:"paragraph,omitempty"`
	Subparagraph int    `json:"subparagraph,omitempty"`

	Text    string `json:"text"`
	Context string `json:"context"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// CaseNumber renders a case citation as 110年度訴字第123號.
func (c Citation) CaseNumber() string {
	if c.Kind != CaseCitation {
		return ""
	}
	word := ""
	if c.Word != "" {
		word = c.Word + "字"
	}
	return fmt.Sprintf("%d年度%s第%d號", c.Year, word, c.Number)
}

// Term records one dictionary substitution.
type Term struct {
	Original   string  `json:"original"`
	Standard   string  `json:"standard"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
}

// ArgumentType classifies an argument by its marker.
type ArgumentType string

const (
	Claim    ArgumentType = "claim"
	Request  ArgumentType = "request"
	Rebuttal ArgumentType = "rebuttal"
)

// Argument is a span introduced by a claim, request or rebuttal marker.
type Argument struct {
	Text      string       `json:"text"`
	Type      ArgumentType `json:"type"`
	Strength  float64      `json:"strength"`
	Citations []Citation   `json:"citations"`
	Start     int          `json:"start"`
}

// CaseDate is a date as written in the document. Year is the raw matched
// year; ROC marks years counted in the Republic of China era.
type CaseDate struct {
	Year  int  `json:"year"`
	Month int  `json:"month"`
	Day   int  `json:"day"`
	ROC   bool `json:"roc"`
}

// rocOffset converts ROC era years to Gregorian years.
const rocOffset = 1911

// Gregorian returns the date in the Gregorian calendar.
func (d CaseDate) Gregorian() time.Time {
	year := d.Year
	if d.ROC {
		year += rocOffset
	}
	return time.Date(year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func (d CaseDate) String() string {
	return fmt.Sprintf("%d-%02d-%02d", d.Year, d.Month, d.Day)
}

// TimelineEntry is a dated event.
type TimelineEntry struct {
	Date       CaseDate `json:"date"`
	Event      string   `json:"event"`
	Importance float64  `json:"importance"`
	Parties    []string `json:"parties"`
}

// Party is a named case participant. Relationships maps another party's
// name to the relationship label.
type Party struct {
	Name          string            `json:"name"`
	Role          string            `json:"role"`
	Relationships map[string]string `json:"relationships"`
}

// Info is everything extracted from one document.
type Info struct {
	Sections  []Section       `json:"sections"`
	Terms     []Term          `json:"standardized_terms"`
	Citations []Citation      `json:"citations"`
	Arguments []Argument      `json:"arguments"`
	Timeline  []TimelineEntry `json:"timeline"`
	Parties   []Party         `json:"parties"`
}

// Party looks up a party by name.
func (i Info) Party(name string) (Party, bool) {
	for _, p := range i.Parties {
		if p.Name == name {
			return p, true
		}
	}
	return Party{}, false
}
