// Package store defines the storage session used to persist processed
// documents and the records written through it.
package store

import (
	"context"
	"time"
)

// Store opens transactions and reads back stored records.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	GetDocument(ctx context.Context, id string) (DocumentRecord, error)
	ProcessingRecords(ctx context.Context, docID string) ([]ProcessingRecord, error)
	Extractions(ctx context.Context, docID string) ([]ExtractionRecord, error)
	// Sources returns the source records of a document, oldest first.
	Sources(ctx context.Context, docID string) ([]SourceRecord, error)
	// SourcesByType returns every source record of type t, oldest first.
	SourcesByType(ctx context.Context, t SourceType) ([]SourceRecord, error)
	Close() error
}

// Tx collects records and writes them atomically. Rollback after Commit
// is a no-op, so callers can always defer it.
type Tx interface {
	Add(ctx context.Context, r Record) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Record is one of DocumentRecord, ProcessingRecord, VersionRecord,
// ExtractionRecord or SourceRecord.
type Record interface {
	isRecord()
}

// DocumentRecord is the stored form of a processed document. Adding a
// document with an existing id replaces it.
type DocumentRecord struct {
	ID          string
	CaseType    string
	CaseNumber  string
	Court       string
	Date        time.Time
	Source      string
	Title       string
	Content     string
	ContentHash string
	Metadata    map[string]string
	UpdatedAt   time.Time
}

// Status is the outcome of processing a document.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ProcessingRecord logs one processing attempt.
type ProcessingRecord struct {
	DocID     string
	Status    Status
	Stage     string
	Error     string
	ChunkIDs  []string
	Duration  time.Duration
	CreatedAt time.Time
}

// VersionRecord links a document to the version produced by a run.
type VersionRecord struct {
	DocID            string
	VersionID        string
	Hash             string
	Changes          string
	ProcessorVersion string
	Timestamp        time.Time
}

// ExtractionRecord holds the JSON-encoded legal structure and validation
// findings of one version.
type ExtractionRecord struct {
	DocID     string
	VersionID string
	Info      []byte
	Findings  []byte
	CreatedAt time.Time
}

// SourceType is the kind of channel a document was collected from.
type SourceType string

const (
	SourceCourtWebsite    SourceType = "court_website"
	SourceOfficialGazette SourceType = "official_gazette"
	SourceManualInput     SourceType = "manual_input"
	SourceAPI             SourceType = "api"
	SourceUnknown         SourceType = "unknown"
)

// ParseSourceType maps s to a SourceType. An empty s is manual input and
// anything unrecognized is SourceUnknown.
func ParseSourceType(s string) SourceType {
	switch t := SourceType(s); t {
	case SourceCourtWebsite, SourceOfficialGazette, SourceManualInput, SourceAPI:
		return t
	case "":
		return SourceManualInput
	default:
		return SourceUnknown
	}
}

// VerificationStatus records whether a source's content has been checked.
type VerificationStatus string

const (
	Unverified VerificationStatus = "unverified"
	Verified   VerificationStatus = "verified"
	// Rejected means the content no longer matches the recorded hash.
	Rejected VerificationStatus = "rejected"
)

// SourceRecord tracks where a document came from. Records are append-only;
// a verification adds a new record rather than updating the old one.
type SourceRecord struct {
	DocID              string
	Source             string
	SourceType         SourceType
	Collector          string
	Title              string
	ContentHash        string
	RetrievedAt        time.Time
	VerificationStatus VerificationStatus
	VerifiedAt         time.Time
}

func (DocumentRecord) isRecord()   {}
func (ProcessingRecord) isRecord() {}
func (VersionRecord) isRecord()    {}
func (ExtractionRecord) isRecord() {}
func (SourceRecord) isRecord()     {}
