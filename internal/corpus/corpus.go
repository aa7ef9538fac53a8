// Package corpus reads legal documents from JSONL dumps and inbox files.
package corpus

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/lexcase/pkg/lexcase/document"
)

// Record is one judgment as it appears in a corpus file.
type Record struct {
	DocID       string            `json:"doc_id"`
	CaseType    string            `json:"case_type"`
	CaseNumber  string            `json:"case_number"`
	Court       string            `json:"court"`
	Date        string            `json:"date"`
	Source      string            `json:"source"`
	Title       string            `json:"title"`
	ContentType string            `json:"content_type"`
	Text        string            `json:"text"`
	Extra       map[string]string `json:"extra"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006/01/02"}

// Input converts the record into pipeline input. An unparsable date is
// kept as written under document.RawDateKey so metadata validation
// reports it as invalid.
func (r Record) Input() document.Input {
	md := document.Metadata{
		DocID:       r.DocID,
		CaseType:    r.CaseType,
		CaseNumber:  r.CaseNumber,
		Court:       r.Court,
		Source:      r.Source,
		Title:       r.Title,
		ContentType: r.ContentType,
		Extra:       r.Extra,
	}
	if raw := strings.TrimSpace(r.Date); raw != "" {
		md.Date = parseDate(raw)
		if md.Date.IsZero() {
			md.Extra = maps.Clone(md.Extra)
			if md.Extra == nil {
				md.Extra = make(map[string]string, 1)
			}
			md.Extra[document.RawDateKey] = raw
		}
	}
	return document.Structured{Document: document.Document{ID: r.DocID, Content: r.Text, Metadata: md}}
}

func parseDate(raw string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LoadFromJSONL loads records from a JSONL file, skipping malformed lines.
func LoadFromJSONL(path string, log logrus.FieldLogger) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var records []Record
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			if log != nil {
				log.WithFields(logrus.Fields{"file": path, "line": i + 1}).WithError(err).Warn("skipping malformed JSON")
			}
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no valid records found in %s", path)
	}
	return records, nil
}

// LoadFile reads a single inbox file. A .json file holds one Record; any
// other file is raw text whose document id is the file name without its
// extension.
func LoadFile(path string) (document.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if rec.DocID == "" {
			rec.DocID = id
		}
		return rec.Input(), nil
	}

	return document.Structured{Document: document.Document{
		ID:      id,
		Content: string(data),
		Metadata: document.Metadata{
			DocID:  id,
			Source: "inbox",
			Title:  base,
		},
	}}, nil
}
