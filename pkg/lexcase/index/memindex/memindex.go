// Package memindex is an in-memory vector index using cosine similarity.
package memindex

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cognicore/lexcase/pkg/lexcase/index"
	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

type entry struct {
	id       string
	text     string
	metadata map[string]string
	vector   []float32
}

// Index keeps every vector in memory and scans them on search.
type Index struct {
	embedder index.Embedder

	mu      sync.RWMutex
	entries []entry
}

var _ index.Index = (*Index)(nil)

// New returns an empty index. A nil embedder uses index.HashEmbedder.
func New(embedder index.Embedder) *Index {
	if embedder == nil {
		embedder = index.HashEmbedder{}
	}
	return &Index{embedder: embedder}
}

// AddTexts embeds and stores texts, returning one id per text.
func (x *Index) AddTexts(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error) {
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, fmt.Errorf("add texts: %d texts, %d metadatas: %w", len(texts), len(metadatas), internalerr.ErrInvalidInput)
	}
	added := make([]entry, len(texts))
	for i, text := range texts {
		vec, err := x.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		e := entry{id: uuid.NewString(), text: text, vector: vec}
		if metadatas != nil {
			e.metadata = maps.Clone(metadatas[i])
		}
		added[i] = e
	}

	x.mu.Lock()
	x.entries = append(x.entries, added...)
	x.mu.Unlock()

	ids := make([]string, len(added))
	for i, e := range added {
		ids[i] = e.id
	}
	return ids, nil
}

// SimilaritySearch returns up to k results ordered by descending score.
func (x *Index) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]string) ([]index.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	qv, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	x.mu.RLock()
	results := make([]index.Result, 0, len(x.entries))
	for _, e := range x.entries {
		if !index.Matches(e.metadata, filter) {
			continue
		}
		results = append(results, index.Result{
			ID:       e.id,
			Text:     e.text,
			Metadata: maps.Clone(e.metadata),
			Score:    index.Cosine(qv, e.vector),
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes the entries with the given ids.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	x.mu.Lock()
	x.entries = slices.DeleteFunc(x.entries, func(e entry) bool { return drop[e.id] })
	x.mu.Unlock()
	return nil
}

// Len returns the number of stored texts.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
