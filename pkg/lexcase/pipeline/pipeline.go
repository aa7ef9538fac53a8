// Package pipeline runs legal documents through cleaning, PII masking,
// chunking and indexing, validation, structure extraction and storage.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/lexcase/pkg/lexcase/chunk"
	"github.com/cognicore/lexcase/pkg/lexcase/document"
	"github.com/cognicore/lexcase/pkg/lexcase/index"
	"github.com/cognicore/lexcase/pkg/lexcase/index/memindex"
	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/legal"
	"github.com/cognicore/lexcase/pkg/lexcase/monitor"
	"github.com/cognicore/lexcase/pkg/lexcase/normalize"
	"github.com/cognicore/lexcase/pkg/lexcase/pii"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
	"github.com/cognicore/lexcase/pkg/lexcase/store/memstore"
	"github.com/cognicore/lexcase/pkg/lexcase/validate"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
)

const (
	DefaultMaxWorkers = 4
	DefaultBatchSize  = 100
	DefaultCollector  = "lexcase"
)

// Options configures a Pipeline. Zero values get in-memory backends and
// default rules.
type Options struct {
	Logger    logrus.FieldLogger
	Store     store.Store
	Index     index.Index
	Versions  *versions.Manager
	Masker    *pii.Masker
	Extractor *legal.Extractor
	Validator *validate.Validator
	Monitor   *monitor.Monitor
	Splitter  chunk.Splitter

	MaxWorkers int
	BatchSize  int

	// SourceTracking adds a SourceRecord per stored document.
	SourceTracking bool
	// Collector names the process recorded on source records.
	Collector string
	// StrictValidation fails the storage stage when any ERROR finding exists.
	StrictValidation bool
	// SkipPIIMasking stores and indexes the cleaned text as is.
	SkipPIIMasking bool
}

// Pipeline processes documents. It is safe for concurrent use.
type Pipeline struct {
	log       logrus.FieldLogger
	store     store.Store
	index     index.Index
	versions  *versions.Manager
	masker    *pii.Masker
	extractor *legal.Extractor
	validator *validate.Validator
	monitor   *monitor.Monitor
	splitter  chunk.Splitter

	maxWorkers     int
	batchSize      int
	sourceTracking bool
	collector      string
	strict         bool
	maskPII        bool

	statsMu sync.Mutex
	stats   Stats
	gen     uint64 // bumped by ResetStats
}

// New builds a Pipeline, filling unset collaborators with defaults.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		log:            opts.Logger,
		store:          opts.Store,
		index:          opts.Index,
		versions:       opts.Versions,
		masker:         opts.Masker,
		extractor:      opts.Extractor,
		validator:      opts.Validator,
		monitor:        opts.Monitor,
		splitter:       opts.Splitter,
		maxWorkers:     opts.MaxWorkers,
		batchSize:      opts.BatchSize,
		sourceTracking: opts.SourceTracking,
		collector:      opts.Collector,
		strict:         opts.StrictValidation,
		maskPII:        !opts.SkipPIIMasking,
	}
	if p.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.log = l
	}
	if p.store == nil {
		p.store = memstore.New()
	}
	if p.index == nil {
		p.index = memindex.New(nil)
	}
	if p.versions == nil {
		p.versions = versions.NewManager(versions.NewMemoryStore())
	}
	if p.masker == nil {
		p.masker = pii.New(pii.DefaultConfig(), pii.WithLogger(p.log), pii.WithDegradeHook(p.monitor.NERDegraded))
	}
	if p.extractor == nil {
		p.extractor = legal.NewExtractor(nil)
	}
	if p.validator == nil {
		p.validator = validate.New(validate.DefaultRules())
	}
	if p.maxWorkers <= 0 {
		p.maxWorkers = DefaultMaxWorkers
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultBatchSize
	}
	if p.collector == "" {
		p.collector = DefaultCollector
	}
	return p
}

// Outcome is the result of a successfully processed document.
type Outcome struct {
	DocID     string
	VersionID string
	ChunkIDs  []string
	// Text is the cleaned, and unless disabled masked, document text.
	Text     string
	PII      []pii.Match
	Info     legal.Info
	Findings []validate.Result
	Duration time.Duration
}

// Process runs one document through every stage. meta applies to
// document.RawText input only. On failure the error is a *StageError and
// any chunks or version written by earlier stages are removed again.
func (p *Pipeline) Process(ctx context.Context, in document.Input, meta *document.Metadata) (*Outcome, error) {
	start := time.Now()
	gen := p.started()
	p.monitor.DocumentStarted()

	r := &run{p: p, start: start, gen: gen}
	out, err := r.execute(ctx, in, meta)
	out.Duration = time.Since(start)
	if err != nil {
		p.finished(gen, false)
		p.monitor.DocumentProcessed(false)
		p.discard(ctx, r)
		p.recordFailure(ctx, r, err, out.Duration)
		return nil, err
	}

	p.finished(gen, true)
	p.monitor.DocumentProcessed(true)
	p.log.WithFields(logrus.Fields{
		"doc_id":      out.DocID,
		"version_id":  out.VersionID,
		"chunks":      len(out.ChunkIDs),
		"findings":    len(out.Findings),
		"duration_ms": out.Duration.Milliseconds(),
	}).Info("document processed")
	return out, nil
}

// ProcessBatch processes docs in sub-batches of BatchSize, at most
// MaxWorkers at a time, and returns the ids of the documents that
// succeeded in input order. Failures are visible through Stats and the
// store's processing records. Once ctx is done no further documents are
// started; documents already running finish and ctx.Err() is returned.
func (p *Pipeline) ProcessBatch(ctx context.Context, docs []document.Input) ([]string, error) {
	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += p.batchSize {
		end := min(start+p.batchSize, len(docs))
		slots := make([]string, end-start)

		var g errgroup.Group
		g.SetLimit(p.maxWorkers)
		for i, in := range docs[start:end] {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				out, err := p.Process(context.WithoutCancel(ctx), in, nil)
				if err == nil {
					slots[i] = out.DocID
				}
				return nil
			})
		}
		g.Wait()

		for _, id := range slots {
			if id != "" {
				ids = append(ids, id)
			}
		}
		if err := ctx.Err(); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// run carries one document through the stages.
type run struct {
	p     *Pipeline
	start time.Time
	gen   uint64
	stage Stage
	doc   document.Document

	// written before storage; removed if the run fails
	version  versions.Version
	chunkIDs []string
}

// step runs fn as stage s, timing it and wrapping any error.
func (r *run) step(s Stage, fn func() error) error {
	r.stage = s
	r.p.entered(r.gen, s)
	t := time.Now()
	err := fn()
	r.p.monitor.ObserveStage(s.String(), time.Since(t), err)
	if err != nil {
		return &StageError{Stage: s, DocID: r.doc.ID, Err: err}
	}
	return nil
}

func (r *run) execute(ctx context.Context, in document.Input, meta *document.Metadata) (*Outcome, error) {
	p := r.p
	out := &Outcome{}
	var (
		cleaned string
		chunks  []chunk.Chunk
	)

	if err := r.step(Ingestion, func() error {
		doc, err := document.Resolve(in, meta, time.Now())
		r.doc = doc
		out.DocID = doc.ID
		return err
	}); err != nil {
		return out, err
	}

	// Metadata missing from the input is read from the text itself.
	if err := r.step(Cleaning, func() error {
		cleaned = clean(r.doc.Content, r.doc.IsHTML())
		if cleaned == "" {
			return fmt.Errorf("no text left after cleaning: %w", internalerr.ErrInvalidInput)
		}
		r.doc.Metadata = p.extractor.Metadata(cleaned).Fill(r.doc.Metadata)
		out.Info.Sections = p.extractor.Sections(cleaned)
		return nil
	}); err != nil {
		return out, err
	}

	if err := r.step(PIIProcessing, func() error {
		out.Text, out.PII = p.mask(ctx, cleaned)
		return nil
	}); err != nil {
		return out, err
	}

	if err := r.step(Vectorization, func() error {
		chunks = p.splitter.SplitChunks(out.Text)
		version, err := p.versions.Record(ctx, r.doc.ID, out.Text, "")
		if err != nil {
			return err
		}
		r.version = version
		out.VersionID = version.ID
		texts, metas := chunkPayload(r.doc, chunks, version)
		out.ChunkIDs, err = p.index.AddTexts(ctx, texts, metas)
		if err != nil {
			return fmt.Errorf("index chunks: %w", err)
		}
		r.chunkIDs = out.ChunkIDs
		return nil
	}); err != nil {
		return out, err
	}

	if err := r.step(FormatValidation, func() error {
		out.Findings = append(out.Findings, p.validator.ValidateFormat(r.doc.Content)...)
		return nil
	}); err != nil {
		return out, err
	}
	if err := r.step(ContentValidation, func() error {
		out.Findings = append(out.Findings, p.validator.ValidateContent(cleaned)...)
		return nil
	}); err != nil {
		return out, err
	}
	if err := r.step(MetadataValidation, func() error {
		out.Findings = append(out.Findings, p.validator.ValidateMetadata(r.doc.Metadata.Fields())...)
		return nil
	}); err != nil {
		return out, err
	}

	// Extraction reads the unmasked text so party names survive.
	var standardized string
	if err := r.step(CitationExtraction, func() error {
		out.Info.Citations = p.extractor.Citations(cleaned)
		return nil
	}); err != nil {
		return out, err
	}
	if err := r.step(TermStandardization, func() error {
		standardized, out.Info.Terms = p.extractor.Standardize(cleaned)
		return nil
	}); err != nil {
		return out, err
	}
	if err := r.step(ArgumentExtraction, func() error {
		out.Info.Arguments = p.extractor.Arguments(standardized)
		return nil
	}); err != nil {
		return out, err
	}
	if err := r.step(TimelineConstruction, func() error {
		out.Info.Timeline = p.extractor.Timeline(standardized)
		return nil
	}); err != nil {
		return out, err
	}
	if err := r.step(PartyAnalysis, func() error {
		out.Info.Parties = p.extractor.Parties(standardized)
		out.Findings = append(out.Findings, legal.Findings(out.Info)...)
		return nil
	}); err != nil {
		return out, err
	}

	for _, f := range out.Findings {
		if f.Level == validate.Error {
			p.monitor.ValidationError(f.Rule)
		}
	}

	if err := r.step(Storage, func() error {
		return p.persist(ctx, r, out)
	}); err != nil {
		return out, err
	}
	return out, nil
}

func clean(content string, html bool) string {
	if html {
		content = normalize.StripHTML(content)
	}
	return normalize.Normalize(content)
}

func (p *Pipeline) mask(ctx context.Context, cleaned string) (string, []pii.Match) {
	if !p.maskPII {
		return cleaned, nil
	}
	return p.masker.Mask(ctx, cleaned)
}

func chunkPayload(doc document.Document, chunks []chunk.Chunk, v versions.Version) ([]string, []map[string]string) {
	base := doc.Metadata.Fields()
	texts := make([]string, len(chunks))
	metas := make([]map[string]string, len(chunks))
	for i, c := range chunks {
		m := make(map[string]string, len(base)+4)
		for k, val := range base {
			m[k] = val
		}
		m["chunk_index"] = strconv.Itoa(c.Index)
		m["total_chunks"] = strconv.Itoa(c.Total)
		m["version_id"] = v.ID
		m["content_hash"] = v.Hash
		texts[i] = c.Text
		metas[i] = m
	}
	return texts, metas
}
