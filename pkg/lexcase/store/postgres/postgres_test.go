package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
)

func TestInsertForEveryRecord(t *testing.T) {
	records := []struct {
		rec   store.Record
		table string
	}{
		{store.DocumentRecord{ID: "doc-1"}, "documents"},
		{store.ProcessingRecord{DocID: "doc-1", Status: store.StatusFailed}, "processing_records"},
		{store.VersionRecord{DocID: "doc-1", VersionID: "v1"}, "document_versions"},
		{store.ExtractionRecord{DocID: "doc-1", VersionID: "v1"}, "extractions"},
		{store.SourceRecord{DocID: "doc-1"}, "sources"},
	}
	for _, tt := range records {
		sql, args, err := insertFor(tt.rec)
		if err != nil {
			t.Fatalf("%T: %v", tt.rec, err)
		}
		if !strings.Contains(sql, "INSERT INTO "+tt.table+" ") {
			t.Errorf("%T should insert into %s: %s", tt.rec, tt.table, sql)
		}
		if want := strings.Count(sql, "$"); want != len(args) {
			t.Errorf("%T: %d placeholders, %d args", tt.rec, want, len(args))
		}
	}
}

func TestInsertForDocumentZeroDate(t *testing.T) {
	_, args, _ := insertFor(store.DocumentRecord{ID: "doc-1"})
	if args[4] != (*time.Time)(nil) {
		t.Errorf("zero date should be NULL, got %v", args[4])
	}
}

func TestInsertForSourceDefaults(t *testing.T) {
	_, args, _ := insertFor(store.SourceRecord{DocID: "doc-1"})
	if args[2] != string(store.SourceUnknown) || args[7] != string(store.Unverified) {
		t.Errorf("expected unknown/unverified defaults, got %v / %v", args[2], args[7])
	}
	if args[8] != (*time.Time)(nil) {
		t.Errorf("unset verified_at should be NULL, got %v", args[8])
	}
}

func TestClassifyUniqueViolation(t *testing.T) {
	err := classify(&pgconn.PgError{Code: uniqueViolation})
	if !errors.Is(err, internalerr.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	other := errors.New("boom")
	if classify(other) != other {
		t.Error("other errors should pass through")
	}
}

func TestSchemaTables(t *testing.T) {
	for _, table := range []string{"documents", "processing_records", "document_versions", "extractions", "sources", "versions"} {
		if !strings.Contains(Schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema missing %s", table)
		}
	}
}
