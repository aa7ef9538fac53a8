// Package lexcase is the entry point for processing legal case documents:
// ingest them through the pipeline, then search chunks and read back
// versions and stored records.
package lexcase

import (
	"context"
	"fmt"

	"github.com/cognicore/lexcase/pkg/lexcase/document"
	"github.com/cognicore/lexcase/pkg/lexcase/index"
	"github.com/cognicore/lexcase/pkg/lexcase/index/memindex"
	"github.com/cognicore/lexcase/pkg/lexcase/monitor"
	"github.com/cognicore/lexcase/pkg/lexcase/pipeline"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
	"github.com/cognicore/lexcase/pkg/lexcase/store/memstore"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
)

// Engine ties the pipeline to the backends it writes to.
type Engine struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	index    index.Index
	versions *versions.Manager
	monitor  *monitor.Monitor
	closer   func() error
}

// Options configures an Engine. When Pipeline is nil one is built over
// Store, Index, Versions and Monitor, with in-memory defaults for any
// that are unset. Close calls Closer if set, otherwise Store.Close.
type Options struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
	Index    index.Index
	Versions *versions.Manager
	Monitor  *monitor.Monitor
	Closer   func() error
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		pipeline: opts.Pipeline,
		store:    opts.Store,
		index:    opts.Index,
		versions: opts.Versions,
		monitor:  opts.Monitor,
		closer:   opts.Closer,
	}
	if e.store == nil {
		e.store = memstore.New()
	}
	if e.index == nil {
		e.index = memindex.New(nil)
	}
	if e.versions == nil {
		e.versions = versions.NewManager(versions.NewMemoryStore())
	}
	if e.monitor == nil {
		e.monitor = monitor.New()
	}
	if e.pipeline == nil {
		e.pipeline = pipeline.New(pipeline.Options{
			Store:          e.store,
			Index:          e.index,
			Versions:       e.versions,
			Monitor:        e.monitor,
			SourceTracking: true,
		})
	}
	if e.closer == nil {
		e.closer = e.store.Close
	}
	return e
}

// Close cleanly shuts down the Engine.
func (e *Engine) Close() error {
	return e.closer()
}

// Ingest processes docs as one batch and returns the ids that succeeded.
func (e *Engine) Ingest(ctx context.Context, docs []document.Input) ([]string, error) {
	return e.pipeline.ProcessBatch(ctx, docs)
}

// IngestOne processes a single document.
func (e *Engine) IngestOne(ctx context.Context, in document.Input, meta *document.Metadata) (*pipeline.Outcome, error) {
	return e.pipeline.Process(ctx, in, meta)
}

// Search returns the k chunks most similar to query.
func (e *Engine) Search(ctx context.Context, query string, k int, filter map[string]string) ([]index.Result, error) {
	res, err := e.index.SimilaritySearch(ctx, query, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// Versions returns the version history of a document, oldest first.
func (e *Engine) Versions(ctx context.Context, docID string) ([]versions.Version, error) {
	return e.versions.Versions(ctx, docID)
}

// Document returns the stored record of a document.
func (e *Engine) Document(ctx context.Context, docID string) (store.DocumentRecord, error) {
	return e.store.GetDocument(ctx, docID)
}

// ProcessingRecords returns every processing attempt of a document.
func (e *Engine) ProcessingRecords(ctx context.Context, docID string) ([]store.ProcessingRecord, error) {
	return e.store.ProcessingRecords(ctx, docID)
}

// Sources returns the provenance records of a document, oldest first.
func (e *Engine) Sources(ctx context.Context, docID string) ([]store.SourceRecord, error) {
	return e.store.Sources(ctx, docID)
}

// SourcesByType returns every provenance record collected through t.
func (e *Engine) SourcesByType(ctx context.Context, t store.SourceType) ([]store.SourceRecord, error) {
	return e.store.SourcesByType(ctx, t)
}

// VerifySource compares freshly retrieved text with the hash recorded for
// the document and records the outcome.
func (e *Engine) VerifySource(ctx context.Context, docID, text string, html bool) (store.SourceRecord, error) {
	return e.pipeline.VerifySource(ctx, docID, text, html)
}

// Stats returns the pipeline counters.
func (e *Engine) Stats() pipeline.Stats {
	return e.pipeline.Stats()
}

// Metrics returns the monitor snapshot.
func (e *Engine) Metrics() monitor.Snapshot {
	return e.monitor.Snapshot()
}
