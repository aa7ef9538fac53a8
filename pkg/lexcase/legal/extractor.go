package legal

import (
	"github.com/cognicore/lexcase/pkg/lexcase/validate"
)

// Extractor runs the extraction passes over a document.
type Extractor struct {
	dict    *Dictionary
	markers []argumentMarker
}

// NewExtractor creates an Extractor. A nil dictionary uses the defaults.
func NewExtractor(dict *Dictionary) *Extractor {
	if dict == nil {
		dict = DefaultDictionary()
	}
	return &Extractor{dict: dict, markers: newArgumentMarkers(dict)}
}

// Standardize applies the term dictionary.
func (e *Extractor) Standardize(text string) (string, []Term) {
	return e.dict.Standardize(text)
}

// Citations extracts citations from text.
func (e *Extractor) Citations(text string) []Citation {
	return ExtractCitations(text)
}

// Arguments extracts claim, request and rebuttal spans.
func (e *Extractor) Arguments(text string) []Argument {
	return extractArguments(text, e.markers)
}

// Timeline extracts dated events sorted by date.
func (e *Extractor) Timeline(text string) []TimelineEntry {
	return buildTimeline(text)
}

// Parties extracts role-labelled parties and their relationships.
func (e *Extractor) Parties(text string) []Party {
	return extractParties(text)
}

// Sections splits a judgment into its headed parts.
func (e *Extractor) Sections(text string) []Section {
	return Segment(text)
}

// Metadata reads document metadata from the text.
func (e *Extractor) Metadata(text string) Facts {
	return ExtractMetadata(text)
}

// Process segments text, standardizes terms, then extracts citations,
// arguments, the timeline and parties from the standardized text.
func (e *Extractor) Process(text string) (string, Info, []validate.Result) {
	info := Info{Sections: e.Sections(text)}
	processed, terms := e.Standardize(text)
	info.Terms = terms
	info.Citations = e.Citations(processed)
	info.Arguments = e.Arguments(processed)
	info.Timeline = e.Timeline(processed)
	info.Parties = e.Parties(processed)
	return processed, info, Findings(info)
}

// Findings reports missing structure. Missing citations or arguments are
// warnings; missing parties is an error.
func Findings(info Info) []validate.Result {
	var findings []validate.Result
	if len(info.Citations) == 0 {
		findings = append(findings, validate.Result{
			Rule: "citations", Level: validate.Warning, Message: "No legal citations found in document",
		})
	}
	if len(info.Arguments) == 0 {
		findings = append(findings, validate.Result{
			Rule: "arguments", Level: validate.Warning, Message: "No clear legal arguments identified",
		})
	}
	if len(info.Parties) == 0 {
		findings = append(findings, validate.Result{
			Rule: "parties", Level: validate.Error, Message: "No case parties identified",
		})
	}
	return findings
}
