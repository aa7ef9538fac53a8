// Package postgres implements store.Store and versions.Store on
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Schema is the DDL applied by Init.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	case_type TEXT NOT NULL DEFAULT '',
	case_number TEXT NOT NULL DEFAULT '',
	court TEXT NOT NULL DEFAULT '',
	date TIMESTAMPTZ,
	source TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	metadata JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS processing_records (
	id BIGSERIAL PRIMARY KEY,
	doc_id TEXT NOT NULL,
	status TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	chunk_ids TEXT[],
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS processing_records_doc_idx ON processing_records(doc_id);

CREATE TABLE IF NOT EXISTS document_versions (
	doc_id TEXT NOT NULL,
	version_id TEXT NOT NULL,
	hash TEXT NOT NULL,
	changes TEXT NOT NULL DEFAULT '',
	processor_version TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY(doc_id, version_id)
);

CREATE TABLE IF NOT EXISTS extractions (
	doc_id TEXT NOT NULL,
	version_id TEXT NOT NULL,
	info JSONB,
	findings JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY(doc_id, version_id)
);

CREATE TABLE IF NOT EXISTS sources (
	id BIGSERIAL PRIMARY KEY,
	doc_id TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL DEFAULT 'unknown',
	collector TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	retrieved_at TIMESTAMPTZ NOT NULL,
	verification_status TEXT NOT NULL DEFAULT 'unverified',
	verified_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS sources_doc_idx ON sources(doc_id);
CREATE INDEX IF NOT EXISTS sources_type_idx ON sources(source_type);

CREATE TABLE IF NOT EXISTS versions (
	doc_id TEXT NOT NULL,
	version_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	hash TEXT NOT NULL,
	changes TEXT NOT NULL DEFAULT '',
	processor_version TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	PRIMARY KEY(doc_id, version_id)
);
`

// Store implements store.Store and versions.Store.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ store.Store    = (*Store)(nil)
	_ versions.Store = (*Store)(nil)
)

// Open connects to the database, pings it and applies the schema.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %v: %w", err, internalerr.ErrStoreUnavailable)
	}
	s := &Store{pool: pool}
	if err := s.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the tables if they don't exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %v: %w", err, internalerr.ErrStoreUnavailable)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Add(ctx context.Context, r store.Record) error {
	sql, args, err := insertFor(r)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("add %T: %w", r, classify(err))
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// insertFor returns the statement and arguments that persist r.
func insertFor(r store.Record) (string, []any, error) {
	switch r := r.(type) {
	case store.DocumentRecord:
		return `
INSERT INTO documents (id, case_type, case_number, court, date, source, title, content, content_hash, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	case_type = EXCLUDED.case_type,
	case_number = EXCLUDED.case_number,
	court = EXCLUDED.court,
	date = EXCLUDED.date,
	source = EXCLUDED.source,
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	content_hash = EXCLUDED.content_hash,
	metadata = EXCLUDED.metadata,
	updated_at = EXCLUDED.updated_at`,
			[]any{r.ID, r.CaseType, r.CaseNumber, r.Court, nullTime(r.Date), r.Source, r.Title,
				r.Content, r.ContentHash, r.Metadata, orNow(r.UpdatedAt)}, nil
	case store.ProcessingRecord:
		return `
INSERT INTO processing_records (doc_id, status, stage, error, chunk_ids, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			[]any{r.DocID, string(r.Status), r.Stage, r.Error, r.ChunkIDs, r.Duration.Milliseconds(), orNow(r.CreatedAt)}, nil
	case store.VersionRecord:
		return `
INSERT INTO document_versions (doc_id, version_id, hash, changes, processor_version, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{r.DocID, r.VersionID, r.Hash, r.Changes, r.ProcessorVersion, orNow(r.Timestamp)}, nil
	case store.ExtractionRecord:
		return `
INSERT INTO extractions (doc_id, version_id, info, findings, created_at)
VALUES ($1, $2, $3, $4, $5)`,
			[]any{r.DocID, r.VersionID, jsonArg(r.Info), jsonArg(r.Findings), orNow(r.CreatedAt)}, nil
	case store.SourceRecord:
		return `
INSERT INTO sources (doc_id, source, source_type, collector, title, content_hash, retrieved_at, verification_status, verified_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			[]any{r.DocID, r.Source, string(orUnknown(r.SourceType)), r.Collector, r.Title, r.ContentHash,
				orNow(r.RetrievedAt), string(orUnverified(r.VerificationStatus)), nullTime(r.VerifiedAt)}, nil
	default:
		return "", nil, fmt.Errorf("add: unsupported record %T: %w", r, internalerr.ErrInvalidInput)
	}
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (store.DocumentRecord, error) {
	var (
		d    store.DocumentRecord
		date *time.Time
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, case_type, case_number, court, date, source, title, content, content_hash, metadata, updated_at
FROM documents WHERE id = $1`, id).Scan(
		&d.ID, &d.CaseType, &d.CaseNumber, &d.Court, &date, &d.Source, &d.Title,
		&d.Content, &d.ContentHash, &d.Metadata, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.DocumentRecord{}, fmt.Errorf("document %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.DocumentRecord{}, err
	}
	if date != nil {
		d.Date = *date
	}
	return d, nil
}

// ProcessingRecords returns the processing log of a document, oldest first.
func (s *Store) ProcessingRecords(ctx context.Context, docID string) ([]store.ProcessingRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT doc_id, status, stage, error, chunk_ids, duration_ms, created_at
FROM processing_records WHERE doc_id = $1 ORDER BY id`, docID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ProcessingRecord, error) {
		var (
			r          store.ProcessingRecord
			status     string
			durationMS int64
		)
		err := row.Scan(&r.DocID, &status, &r.Stage, &r.Error, &r.ChunkIDs, &durationMS, &r.CreatedAt)
		r.Status = store.Status(status)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		return r, err
	})
}

// Extractions returns the extraction records of a document.
func (s *Store) Extractions(ctx context.Context, docID string) ([]store.ExtractionRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT doc_id, version_id, info::text, findings::text, created_at
FROM extractions WHERE doc_id = $1 ORDER BY created_at, version_id`, docID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ExtractionRecord, error) {
		var (
			r              store.ExtractionRecord
			info, findings *string
		)
		err := row.Scan(&r.DocID, &r.VersionID, &info, &findings, &r.CreatedAt)
		if info != nil {
			r.Info = []byte(*info)
		}
		if findings != nil {
			r.Findings = []byte(*findings)
		}
		return r, err
	})
}

const sourceColumns = `doc_id, source, source_type, collector, title, content_hash, retrieved_at, verification_status, verified_at`

// Sources returns the source records of a document, oldest first.
func (s *Store) Sources(ctx context.Context, docID string) ([]store.SourceRecord, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE doc_id = $1 ORDER BY id`, docID)
}

// SourcesByType returns every source record of type t, oldest first.
func (s *Store) SourcesByType(ctx context.Context, t store.SourceType) ([]store.SourceRecord, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE source_type = $1 ORDER BY id`, string(t))
}

func (s *Store) querySources(ctx context.Context, query string, arg any) ([]store.SourceRecord, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SourceRecord, error) {
		var (
			r                  store.SourceRecord
			sourceType, status string
			verifiedAt         *time.Time
		)
		err := row.Scan(&r.DocID, &r.Source, &sourceType, &r.Collector, &r.Title, &r.ContentHash,
			&r.RetrievedAt, &status, &verifiedAt)
		r.SourceType = store.SourceType(sourceType)
		r.VerificationStatus = store.VerificationStatus(status)
		if verifiedAt != nil {
			r.VerifiedAt = *verifiedAt
		}
		return r, err
	})
}

// Put implements versions.Store.
func (s *Store) Put(ctx context.Context, v versions.Version, text string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO versions (doc_id, version_id, timestamp, hash, changes, processor_version, text)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.DocID, v.ID, v.Timestamp, v.Hash, v.Changes, v.ProcessorVersion, text)
	if err != nil {
		return fmt.Errorf("put version %s: %w", v.ID, classify(err))
	}
	return nil
}

// Get implements versions.Store.
func (s *Store) Get(ctx context.Context, docID, versionID string) (versions.Version, string, error) {
	var (
		v    versions.Version
		text string
	)
	err := s.pool.QueryRow(ctx, `
SELECT doc_id, version_id, timestamp, hash, changes, processor_version, text
FROM versions WHERE doc_id = $1 AND version_id = $2`, docID, versionID).Scan(
		&v.DocID, &v.ID, &v.Timestamp, &v.Hash, &v.Changes, &v.ProcessorVersion, &text)
	if errors.Is(err, pgx.ErrNoRows) {
		return versions.Version{}, "", fmt.Errorf("version %s/%s: %w", docID, versionID, internalerr.ErrNotFound)
	}
	if err != nil {
		return versions.Version{}, "", err
	}
	return v, text, nil
}

// List implements versions.Store.
func (s *Store) List(ctx context.Context, docID string) ([]versions.Version, error) {
	rows, err := s.pool.Query(ctx, `
SELECT doc_id, version_id, timestamp, hash, changes, processor_version
FROM versions WHERE doc_id = $1 ORDER BY timestamp, version_id`, docID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (versions.Version, error) {
		var v versions.Version
		err := row.Scan(&v.DocID, &v.ID, &v.Timestamp, &v.Hash, &v.Changes, &v.ProcessorVersion)
		return v, err
	})
}

// Delete implements versions.Store.
func (s *Store) Delete(ctx context.Context, docID, versionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM versions WHERE doc_id = $1 AND version_id = $2`, docID, versionID); err != nil {
		return fmt.Errorf("delete version %s: %w", versionID, err)
	}
	return nil
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%v: %w", err, internalerr.ErrDuplicate)
	}
	return err
}

func orUnknown(t store.SourceType) store.SourceType {
	if t == "" {
		return store.SourceUnknown
	}
	return t
}

func orUnverified(v store.VerificationStatus) store.VerificationStatus {
	if v == "" {
		return store.Unverified
	}
	return v
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// jsonArg passes raw JSON so pgx sends it as text rather than bytea.
func jsonArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
