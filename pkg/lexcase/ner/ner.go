// Package ner defines the named-entity capability used for PII detection
// and a keyword gazetteer implementation of it.
package ner

import "context"

// Entity types recognized by the pipeline.
const (
	Person       = "PERSON"
	Location     = "LOCATION"
	Organization = "ORG"
)

// Entity is a recognized span with byte offsets into the analyzed text.
type Entity struct {
	Type  string
	Text  string
	Start int
	End   int
}

// Recognizer extracts named entities from text.
type Recognizer interface {
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, text string) ([]Entity, error)

// ExtractEntities calls f.
func (f RecognizerFunc) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	return f(ctx, text)
}
