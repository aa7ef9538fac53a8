// Package validate checks documents against format, content and metadata
// rules and reports leveled findings.
package validate

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cognicore/lexcase/pkg/lexcase/normalize"
)

// Level is the severity of a finding.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Result is one rule finding.
type Result struct {
	Rule    string         `json:"rule_name"`
	Level   Level          `json:"level"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HasErrors reports whether any finding is at Error level.
func HasErrors(results []Result) bool {
	for _, r := range results {
		if r.Level == Error {
			return true
		}
	}
	return false
}

// Rules configures the validator.
type Rules struct {
	MaxSizeBytes     int      `yaml:"max_size_bytes"`
	AllowedEncodings []string `yaml:"allowed_encodings"`
	MinWords         int      `yaml:"min_words"`
	MaxWords         int      `yaml:"max_words"`
	RequiredFields   []string `yaml:"required_fields"`
	HeaderTokens     []string `yaml:"header_tokens"`
	// HeaderWindow is how many leading runes may hold the header token.
	HeaderWindow int `yaml:"header_window"`
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		MaxSizeBytes:     10 * 1024 * 1024,
		AllowedEncodings: []string{"utf-8", "ascii"},
		MinWords:         100,
		MaxWords:         100000,
		RequiredFields:   []string{"case_number", "court", "date"},
		HeaderTokens:     []string{"判決", "裁定", "決定"},
		HeaderWindow:     64,
	}
}

var (
	caseNumberRe = regexp.MustCompile(`\d{2,4}\s*年度?\s*(?:\p{Han}{1,4}字)?\s*第?\s*\d{1,6}\s*號|\d{2,4}-\d{1,6}號?`)
	dateRe       = regexp.MustCompile(`\d{2,4}[-/年]\d{1,2}[-/月]\d{1,2}`)
)

// Validator applies Rules.
type Validator struct {
	rules Rules
	now   func() time.Time
}

// New creates a Validator.
func New(rules Rules) *Validator {
	return &Validator{rules: rules, now: time.Now}
}

// Rules returns the active rules.
func (v *Validator) Rules() Rules { return v.rules }

// ValidateFormat checks size, encoding and word count, and reports the
// document statistics as an info finding.
func (v *Validator) ValidateFormat(content string) []Result {
	stats := normalize.Analyze(content)
	results := []Result{{
		Rule:    "document_stats",
		Level:   Info,
		Message: "Document statistics",
		Details: map[string]any{
			"size_bytes":      stats.SizeBytes,
			"char_count":      stats.Chars,
			"word_count":      stats.Words,
			"sentence_count":  stats.Sentences,
			"paragraph_count": stats.Paragraphs,
			"encoding":        stats.Encoding,
		},
	}}

	if stats.SizeBytes > v.rules.MaxSizeBytes {
		results = append(results, Result{
			Rule:    "file_size",
			Level:   Error,
			Message: fmt.Sprintf("File size exceeds maximum allowed (%d bytes)", v.rules.MaxSizeBytes),
			Details: map[string]any{"size": stats.SizeBytes},
		})
	}
	if !slices.Contains(v.rules.AllowedEncodings, stats.Encoding) {
		results = append(results, Result{
			Rule:    "encoding",
			Level:   Error,
			Message: "Invalid encoding: " + stats.Encoding,
			Details: map[string]any{"encoding": stats.Encoding},
		})
	}
	switch {
	case stats.Words < v.rules.MinWords:
		results = append(results, Result{
			Rule:    "min_word_count",
			Level:   Error,
			Message: fmt.Sprintf("Document too short (%d words)", stats.Words),
			Details: map[string]any{"word_count": stats.Words},
		})
	case v.rules.MaxWords > 0 && stats.Words > v.rules.MaxWords:
		results = append(results, Result{
			Rule:    "max_word_count",
			Level:   Error,
			Message: fmt.Sprintf("Document too long (%d words)", stats.Words),
			Details: map[string]any{"word_count": stats.Words},
		})
	}
	return results
}

// ValidateContent looks for a case number, a date and a document header.
func (v *Validator) ValidateContent(content string) []Result {
	var results []Result
	if !caseNumberRe.MatchString(content) {
		results = append(results, Result{
			Rule: "case_number_format", Level: Warning, Message: "Case number not found or invalid format",
		})
	}
	if !dateRe.MatchString(content) {
		results = append(results, Result{
			Rule: "date_format", Level: Warning, Message: "Date not found or invalid format",
		})
	}
	if !v.hasHeader(content) {
		results = append(results, Result{
			Rule: "document_header", Level: Warning, Message: "Document does not start with expected legal document header",
		})
	}
	return results
}

func (v *Validator) hasHeader(content string) bool {
	head := strings.TrimSpace(content)
	n := 0
	for i := range head {
		if n == v.rules.HeaderWindow {
			head = head[:i]
			break
		}
		n++
	}
	for _, tok := range v.rules.HeaderTokens {
		if strings.Contains(head, tok) {
			return true
		}
	}
	return false
}

// ValidateMetadata checks required fields and the document date.
func (v *Validator) ValidateMetadata(fields map[string]string) []Result {
	var results []Result
	for _, f := range v.rules.RequiredFields {
		if strings.TrimSpace(fields[f]) == "" {
			results = append(results, Result{
				Rule: "required_field", Level: Error, Message: "Missing required field: " + f, Field: f,
			})
		}
	}

	if raw := strings.TrimSpace(fields["date"]); raw != "" {
		date, err := parseDate(raw)
		switch {
		case err != nil:
			results = append(results, Result{
				Rule: "invalid_date", Level: Error, Message: "Invalid date format", Field: "date",
			})
		case date.After(v.now()):
			results = append(results, Result{
				Rule: "future_date", Level: Error, Message: "Document date is in the future", Field: "date",
			})
		}
	}
	return results
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Validate runs all three rule groups.
func (v *Validator) Validate(content string, fields map[string]string) []Result {
	var results []Result
	results = append(results, v.ValidateFormat(content)...)
	results = append(results, v.ValidateContent(content)...)
	results = append(results, v.ValidateMetadata(fields)...)
	return results
}
