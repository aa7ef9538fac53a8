package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/lexcase/pkg/lexcase/document"
	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
	"github.com/cognicore/lexcase/pkg/lexcase/validate"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
)

// persist writes every record of a processed document in one transaction.
func (p *Pipeline) persist(ctx context.Context, r *run, out *Outcome) error {
	doc, v := r.doc, r.version
	if p.strict && validate.HasErrors(out.Findings) {
		return fmt.Errorf("%d error findings: %w", countErrors(out.Findings), internalerr.ErrValidationFailed)
	}

	info, err := json.Marshal(out.Info)
	if err != nil {
		return fmt.Errorf("encode extraction: %w", err)
	}
	findings, err := json.Marshal(out.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}

	now := time.Now().UTC()
	records := []store.Record{
		store.DocumentRecord{
			ID:          doc.ID,
			CaseType:    doc.Metadata.CaseType,
			CaseNumber:  doc.Metadata.CaseNumber,
			Court:       doc.Metadata.Court,
			Date:        doc.Metadata.Date,
			Source:      doc.Metadata.Source,
			Title:       doc.Metadata.Title,
			Content:     out.Text,
			ContentHash: v.Hash,
			Metadata:    doc.Metadata.Extra,
			UpdatedAt:   now,
		},
		store.ProcessingRecord{
			DocID:     doc.ID,
			Status:    store.StatusSuccess,
			Stage:     Storage.String(),
			ChunkIDs:  out.ChunkIDs,
			Duration:  time.Since(r.start),
			CreatedAt: now,
		},
		store.VersionRecord{
			DocID:            doc.ID,
			VersionID:        v.ID,
			Hash:             v.Hash,
			Changes:          v.Changes,
			ProcessorVersion: v.ProcessorVersion,
			Timestamp:        v.Timestamp,
		},
		store.ExtractionRecord{
			DocID:     doc.ID,
			VersionID: v.ID,
			Info:      info,
			Findings:  findings,
			CreatedAt: now,
		},
	}
	if p.sourceTracking {
		records = append(records, store.SourceRecord{
			DocID:              doc.ID,
			Source:             doc.Metadata.Source,
			SourceType:         store.ParseSourceType(doc.Metadata.Extra[document.SourceTypeKey]),
			Collector:          p.collector,
			Title:              doc.Metadata.Title,
			ContentHash:        v.Hash,
			RetrievedAt:        now,
			VerificationStatus: store.Unverified,
		})
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if err := tx.Add(ctx, rec); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// discard removes the chunks and version a failed run wrote before its
// storage transaction. Errors are logged and otherwise ignored.
func (p *Pipeline) discard(ctx context.Context, r *run) {
	ctx = context.WithoutCancel(ctx)
	log := p.log.WithField("doc_id", r.doc.ID)
	if len(r.chunkIDs) > 0 {
		if err := p.index.Delete(ctx, r.chunkIDs); err != nil {
			log.WithError(err).Warn("could not remove indexed chunks")
		}
	}
	if r.version.ID != "" {
		if err := p.versions.Discard(ctx, r.version); err != nil {
			log.WithError(err).Warn("could not discard version")
		}
	}
}

// VerifySource checks text, as newly retrieved from a document's source,
// against the content hash recorded on the document's latest source
// record. The text is cleaned and masked the way Process does it. The
// outcome is appended as a new source record and returned.
func (p *Pipeline) VerifySource(ctx context.Context, docID, text string, html bool) (store.SourceRecord, error) {
	srcs, err := p.store.Sources(ctx, docID)
	if err != nil {
		return store.SourceRecord{}, fmt.Errorf("read sources: %w", err)
	}
	if len(srcs) == 0 {
		return store.SourceRecord{}, fmt.Errorf("sources of %s: %w", docID, internalerr.ErrNotFound)
	}

	masked, _ := p.mask(ctx, clean(text, html))
	rec := srcs[len(srcs)-1]
	rec.Collector = p.collector
	rec.VerifiedAt = time.Now().UTC()
	rec.VerificationStatus = store.Verified
	if versions.Hash(masked) != rec.ContentHash {
		rec.VerificationStatus = store.Rejected
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return store.SourceRecord{}, err
	}
	defer tx.Rollback(ctx)
	if err := tx.Add(ctx, rec); err != nil {
		return store.SourceRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.SourceRecord{}, err
	}

	p.log.WithFields(logrus.Fields{
		"doc_id": docID,
		"status": rec.VerificationStatus,
	}).Info("source verified")
	return rec, nil
}

// recordFailure logs the failure and writes a failed ProcessingRecord in
// its own transaction. It runs after the failed stage's transaction has
// been rolled back.
func (p *Pipeline) recordFailure(ctx context.Context, r *run, err error, d time.Duration) {
	stage, docID := r.stage, r.doc.ID
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	log := p.log.WithFields(logrus.Fields{
		"doc_id":      docID,
		"stage":       stage.String(),
		"duration_ms": d.Milliseconds(),
	})
	log.WithError(err).Error("document failed")

	if docID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	tx, terr := p.store.Begin(ctx)
	if terr != nil {
		log.WithError(terr).Warn("could not record failure")
		return
	}
	defer tx.Rollback(ctx)
	rec := store.ProcessingRecord{
		DocID:     docID,
		Status:    store.StatusFailed,
		Stage:     stage.String(),
		Error:     err.Error(),
		Duration:  d,
		CreatedAt: time.Now().UTC(),
	}
	if terr := tx.Add(ctx, rec); terr != nil {
		log.WithError(terr).Warn("could not record failure")
		return
	}
	if terr := tx.Commit(ctx); terr != nil {
		log.WithError(terr).Warn("could not record failure")
	}
}

func countErrors(results []validate.Result) int {
	n := 0
	for _, r := range results {
		if r.Level == validate.Error {
			n++
		}
	}
	return n
}
