package pipeline

import "fmt"

// Stage is one step of document processing. Stages run in declaration order.
type Stage int

const (
	Ingestion Stage = iota
	Cleaning
	PIIProcessing
	Vectorization
	FormatValidation
	ContentValidation
	MetadataValidation
	CitationExtraction
	TermStandardization
	ArgumentExtraction
	TimelineConstruction
	PartyAnalysis
	Storage
)

var stageNames = [...]string{
	Ingestion:            "ingestion",
	Cleaning:             "cleaning",
	PIIProcessing:        "pii_processing",
	Vectorization:        "vectorization",
	FormatValidation:     "format_validation",
	ContentValidation:    "content_validation",
	MetadataValidation:   "metadata_validation",
	CitationExtraction:   "citation_extraction",
	TermStandardization:  "term_standardization",
	ArgumentExtraction:   "argument_extraction",
	TimelineConstruction: "timeline_construction",
	PartyAnalysis:        "party_analysis",
	Storage:              "storage",
}

// Stages lists every stage in execution order.
func Stages() []Stage {
	out := make([]Stage, len(stageNames))
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is returned when a document fails. Err is the cause.
type StageError struct {
	Stage Stage
	DocID string
	Err   error
}

func (e *StageError) Error() string {
	if e.DocID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("document %s: %s: %v", e.DocID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
