package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

// Metadata describes where a legal document came from.
type Metadata struct {
	DocID       string            `json:"doc_id" yaml:"doc_id"`
	CaseType    string            `json:"case_type" yaml:"case_type"`
	CaseNumber  string            `json:"case_number" yaml:"case_number"`
	Court       string            `json:"court" yaml:"court"`
	Date        time.Time         `json:"date" yaml:"date"`
	Source      string            `json:"source" yaml:"source"`
	Title       string            `json:"title" yaml:"title"`
	ContentType string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Extra       map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// RawDateKey holds, in Extra, a date that was supplied but could not be
// parsed. Fields reports it as the date so validation can reject it.
const RawDateKey = "date_raw"

// SourceTypeKey names, in Extra, the channel a document was collected
// from: court_website, official_gazette, manual_input or api.
const SourceTypeKey = "source_type"

// Fields flattens the metadata into string fields for rule checks and
// chunk metadata. Empty values are kept so required-field checks can see them.
func (m Metadata) Fields() map[string]string {
	fields := make(map[string]string, 8+len(m.Extra))
	for k, v := range m.Extra {
		fields[k] = v
	}
	fields["doc_id"] = m.DocID
	fields["case_type"] = m.CaseType
	fields["case_number"] = m.CaseNumber
	fields["court"] = m.Court
	fields["source"] = m.Source
	fields["title"] = m.Title
	if m.Date.IsZero() {
		fields["date"] = m.Extra[RawDateKey]
	} else {
		fields["date"] = m.Date.Format(time.RFC3339)
	}
	return fields
}

// Document is one legal text unit submitted for processing.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Validate checks that the document carries processable content.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: document id is required", internalerr.ErrInvalidInput)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: document content is empty", internalerr.ErrInvalidInput)
	}
	return nil
}

// IsHTML reports whether the content should be stripped of markup first.
func (d *Document) IsHTML() bool {
	if strings.Contains(strings.ToLower(d.Metadata.ContentType), "html") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(d.Content), "<")
}

// Input is what the pipeline accepts: either RawText or Structured.
type Input interface {
	isInput()
}

// RawText is a bare document body with no record attached.
type RawText string

func (RawText) isInput() {}

// Structured is a document that already carries its own record.
type Structured struct {
	Document Document
}

func (Structured) isInput() {}

// Resolve turns an input into a Document. meta applies to RawText only;
// missing identifiers are filled with a fresh UUID.
func Resolve(in Input, meta *Metadata, now time.Time) (Document, error) {
	switch v := in.(type) {
	case RawText:
		var md Metadata
		if meta != nil {
			md = *meta
		} else {
			md = Metadata{
				CaseType: "unknown",
				Court:    "unknown",
				Date:     now,
				Source:   "direct",
				Title:    "Untitled Document",
			}
		}
		if md.DocID == "" {
			md.DocID = uuid.NewString()
		}
		doc := Document{ID: md.DocID, Content: string(v), Metadata: md}
		return doc, doc.Validate()
	case Structured:
		doc := v.Document
		switch {
		case doc.ID == "" && doc.Metadata.DocID != "":
			doc.ID = doc.Metadata.DocID
		case doc.ID == "":
			doc.ID = uuid.NewString()
		}
		doc.Metadata.DocID = doc.ID
		return doc, doc.Validate()
	case nil:
		return Document{}, fmt.Errorf("%w: nil input", internalerr.ErrInvalidInput)
	default:
		return Document{}, fmt.Errorf("%w: unsupported input %T", internalerr.ErrInvalidInput, in)
	}
}
