package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu          sync.RWMutex
	docs        map[string]store.DocumentRecord
	processing  map[string][]store.ProcessingRecord
	versions    map[string][]store.VersionRecord
	extractions map[string][]store.ExtractionRecord
	sources     map[string][]store.SourceRecord
	bySeq       []store.SourceRecord
	closed      bool
}

var _ store.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		docs:        make(map[string]store.DocumentRecord),
		processing:  make(map[string][]store.ProcessingRecord),
		versions:    make(map[string][]store.VersionRecord),
		extractions: make(map[string][]store.ExtractionRecord),
		sources:     make(map[string][]store.SourceRecord),
	}
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Begin starts a transaction that buffers records until Commit.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("begin: %w", internalerr.ErrStoreUnavailable)
	}
	return &tx{s: s}, nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (store.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return store.DocumentRecord{}, fmt.Errorf("document %s: %w", id, internalerr.ErrNotFound)
	}
	d.Metadata = maps.Clone(d.Metadata)
	return d, nil
}

// ProcessingRecords returns the processing log of a document, oldest first.
func (s *Store) ProcessingRecords(ctx context.Context, docID string) ([]store.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.processing[docID])
	for i := range out {
		out[i].ChunkIDs = slices.Clone(out[i].ChunkIDs)
	}
	return out, nil
}

// Extractions returns the extraction records of a document, oldest first.
func (s *Store) Extractions(ctx context.Context, docID string) ([]store.ExtractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.extractions[docID]), nil
}

// Versions returns the version links of a document.
func (s *Store) Versions(docID string) []store.VersionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.versions[docID])
}

// Sources returns the source records of a document, oldest first.
func (s *Store) Sources(ctx context.Context, docID string) ([]store.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sources[docID]), nil
}

// SourcesByType returns every source record of type t in commit order.
func (s *Store) SourcesByType(ctx context.Context, t store.SourceType) ([]store.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.SourceRecord
	for _, r := range s.bySeq {
		if r.SourceType == t {
			out = append(out, r)
		}
	}
	return out, nil
}

type tx struct {
	s       *Store
	pending []store.Record
	done    bool
}

func (t *tx) Add(ctx context.Context, r store.Record) error {
	if t.done {
		return fmt.Errorf("add: transaction finished: %w", internalerr.ErrInvalidInput)
	}
	if r == nil {
		return fmt.Errorf("add: nil record: %w", internalerr.ErrInvalidInput)
	}
	t.pending = append(t.pending, r)
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("commit: transaction finished: %w", internalerr.ErrInvalidInput)
	}
	t.done = true

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("commit: %w", internalerr.ErrStoreUnavailable)
	}

	// check duplicates before applying anything
	for _, r := range t.pending {
		if v, ok := r.(store.VersionRecord); ok {
			for _, e := range s.versions[v.DocID] {
				if e.VersionID == v.VersionID {
					return fmt.Errorf("version %s: %w", v.VersionID, internalerr.ErrDuplicate)
				}
			}
		}
	}

	for _, r := range t.pending {
		switch r := r.(type) {
		case store.DocumentRecord:
			r.Metadata = maps.Clone(r.Metadata)
			s.docs[r.ID] = r
		case store.ProcessingRecord:
			r.ChunkIDs = slices.Clone(r.ChunkIDs)
			s.processing[r.DocID] = append(s.processing[r.DocID], r)
		case store.VersionRecord:
			s.versions[r.DocID] = append(s.versions[r.DocID], r)
		case store.ExtractionRecord:
			s.extractions[r.DocID] = append(s.extractions[r.DocID], r)
		case store.SourceRecord:
			s.sources[r.DocID] = append(s.sources[r.DocID], r)
			s.bySeq = append(s.bySeq, r)
		}
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.done = true
	t.pending = nil
	return nil
}
