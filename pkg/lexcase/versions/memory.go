package versions

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

type stored struct {
	version Version
	text    string
}

// MemoryStore keeps versions in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]stored
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]stored)}
}

func (s *MemoryStore) Put(ctx context.Context, v Version, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.docs[v.DocID] {
		if e.version.ID == v.ID {
			return fmt.Errorf("version %s: %w", v.ID, internalerr.ErrDuplicate)
		}
	}
	s.docs[v.DocID] = append(s.docs[v.DocID], stored{version: v, text: text})
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, docID, versionID string) (Version, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.docs[docID] {
		if e.version.ID == versionID {
			return e.version, e.text, nil
		}
	}
	return Version{}, "", fmt.Errorf("version %s/%s: %w", docID, versionID, internalerr.ErrNotFound)
}

func (s *MemoryStore) Delete(ctx context.Context, docID, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docID] = slices.DeleteFunc(s.docs[docID], func(e stored) bool { return e.version.ID == versionID })
	return nil
}

func (s *MemoryStore) List(ctx context.Context, docID string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.docs[docID]
	out := make([]Version, len(entries))
	for i, e := range entries {
		out[i] = e.version
	}
	Sort(out)
	return out, nil
}
