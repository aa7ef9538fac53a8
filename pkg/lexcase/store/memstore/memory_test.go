package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
)

func TestCommitAppliesRecords(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback(ctx)

	records := []store.Record{
		store.DocumentRecord{ID: "doc-1", Court: "臺北地院", Metadata: map[string]string{"k": "v"}},
		store.ProcessingRecord{DocID: "doc-1", Status: store.StatusSuccess, ChunkIDs: []string{"c1"}},
		store.VersionRecord{DocID: "doc-1", VersionID: "v1"},
		store.ExtractionRecord{DocID: "doc-1", VersionID: "v1", Info: []byte(`{}`)},
		store.SourceRecord{DocID: "doc-1", Source: "judicial"},
	}
	for _, r := range records {
		if err := tx.Add(ctx, r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if _, err := s.GetDocument(ctx, "doc-1"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("records must not be visible before commit, got %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	doc, err := s.GetDocument(ctx, "doc-1")
	if err != nil || doc.Court != "臺北地院" {
		t.Errorf("GetDocument = %+v, %v", doc, err)
	}
	doc.Metadata["k"] = "mutated"
	again, _ := s.GetDocument(ctx, "doc-1")
	if again.Metadata["k"] != "v" {
		t.Error("GetDocument must return a copy")
	}

	recs, _ := s.ProcessingRecords(ctx, "doc-1")
	if len(recs) != 1 || recs[0].Status != store.StatusSuccess {
		t.Errorf("unexpected processing records %+v", recs)
	}
	src, _ := s.Sources(ctx, "doc-1")
	if len(s.Versions("doc-1")) != 1 || len(src) != 1 {
		t.Error("expected one version and one source")
	}
	ex, _ := s.Extractions(ctx, "doc-1")
	if len(ex) != 1 {
		t.Errorf("expected one extraction, got %d", len(ex))
	}
}

func TestRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx)
	tx.Add(ctx, store.DocumentRecord{ID: "doc-1"})
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("rolled back document should not exist, got %v", err)
	}
	if err := tx.Commit(ctx); err == nil {
		t.Error("commit after rollback should fail")
	}
}

func TestDuplicateVersionFailsWholeCommit(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, _ := s.Begin(ctx)
	tx.Add(ctx, store.VersionRecord{DocID: "doc-1", VersionID: "v1", Timestamp: time.Now()})
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx, _ = s.Begin(ctx)
	tx.Add(ctx, store.DocumentRecord{ID: "doc-1"})
	tx.Add(ctx, store.VersionRecord{DocID: "doc-1", VersionID: "v1"})
	if err := tx.Commit(ctx); !errors.Is(err, internalerr.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); err == nil {
		t.Error("failed commit must not apply any record")
	}
}

func TestClosedStore(t *testing.T) {
	s := New()
	s.Close()
	if _, err := s.Begin(context.Background()); !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSourcesByType(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx)
	tx.Add(ctx, store.SourceRecord{DocID: "a", SourceType: store.SourceCourtWebsite})
	tx.Add(ctx, store.SourceRecord{DocID: "b", SourceType: store.SourceAPI})
	tx.Add(ctx, store.SourceRecord{DocID: "c", SourceType: store.SourceCourtWebsite})
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.SourcesByType(ctx, store.SourceCourtWebsite)
	if err != nil {
		t.Fatalf("SourcesByType: %v", err)
	}
	if len(got) != 2 || got[0].DocID != "a" || got[1].DocID != "c" {
		t.Errorf("unexpected sources %+v", got)
	}
	if none, _ := s.SourcesByType(ctx, store.SourceOfficialGazette); len(none) != 0 {
		t.Errorf("expected no gazette sources, got %+v", none)
	}
}
