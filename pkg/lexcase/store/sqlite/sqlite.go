package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
)

// Store implements store.Store and versions.Store on SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ store.Store    = (*Store)(nil)
	_ versions.Store = (*Store)(nil)
)

// Open opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; concurrent documents queue on the connection
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	case_type TEXT,
	case_number TEXT,
	court TEXT,
	date TEXT,
	source TEXT,
	title TEXT,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	metadata TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS processing_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL,
	status TEXT NOT NULL,
	stage TEXT,
	error TEXT,
	chunk_ids TEXT,
	duration_ms INTEGER DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS processing_records_doc_idx ON processing_records(doc_id);

CREATE TABLE IF NOT EXISTS document_versions (
	doc_id TEXT NOT NULL,
	version_id TEXT NOT NULL,
	hash TEXT NOT NULL,
	changes TEXT,
	processor_version TEXT,
	created_at TEXT NOT NULL,
	PRIMARY KEY(doc_id, version_id)
);

CREATE TABLE IF NOT EXISTS extractions (
	doc_id TEXT NOT NULL,
	version_id TEXT NOT NULL,
	info TEXT,
	findings TEXT,
	created_at TEXT NOT NULL,
	PRIMARY KEY(doc_id, version_id)
);

CREATE TABLE IF NOT EXISTS sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL,
	source TEXT,
	source_type TEXT NOT NULL DEFAULT 'unknown',
	collector TEXT,
	title TEXT,
	content_hash TEXT,
	retrieved_at TEXT NOT NULL,
	verification_status TEXT NOT NULL DEFAULT 'unverified',
	verified_at TEXT
);

CREATE INDEX IF NOT EXISTS sources_doc_idx ON sources(doc_id);
CREATE INDEX IF NOT EXISTS sources_type_idx ON sources(source_type);

CREATE TABLE IF NOT EXISTS versions (
	doc_id TEXT NOT NULL,
	version_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	hash TEXT NOT NULL,
	changes TEXT,
	processor_version TEXT,
	text TEXT NOT NULL,
	PRIMARY KEY(doc_id, version_id)
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Begin starts a database transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %v: %w", err, internalerr.ErrStoreUnavailable)
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Add(ctx context.Context, r store.Record) error {
	var err error
	switch r := r.(type) {
	case store.DocumentRecord:
		var meta []byte
		meta, err = json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		_, err = t.tx.ExecContext(ctx, `
INSERT INTO documents (id, case_type, case_number, court, date, source, title, content, content_hash, metadata, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	case_type=excluded.case_type,
	case_number=excluded.case_number,
	court=excluded.court,
	date=excluded.date,
	source=excluded.source,
	title=excluded.title,
	content=excluded.content,
	content_hash=excluded.content_hash,
	metadata=excluded.metadata,
	updated_at=excluded.updated_at`,
			r.ID, r.CaseType, r.CaseNumber, r.Court, formatTime(r.Date), r.Source, r.Title,
			r.Content, r.ContentHash, string(meta), formatTime(r.UpdatedAt))
	case store.ProcessingRecord:
		var ids []byte
		ids, err = json.Marshal(r.ChunkIDs)
		if err != nil {
			return fmt.Errorf("encode chunk ids: %w", err)
		}
		_, err = t.tx.ExecContext(ctx, `
INSERT INTO processing_records (doc_id, status, stage, error, chunk_ids, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.DocID, string(r.Status), r.Stage, r.Error, string(ids), r.Duration.Milliseconds(), formatTime(r.CreatedAt))
	case store.VersionRecord:
		_, err = t.tx.ExecContext(ctx, `
INSERT INTO document_versions (doc_id, version_id, hash, changes, processor_version, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			r.DocID, r.VersionID, r.Hash, r.Changes, r.ProcessorVersion, formatTime(r.Timestamp))
	case store.ExtractionRecord:
		_, err = t.tx.ExecContext(ctx, `
INSERT INTO extractions (doc_id, version_id, info, findings, created_at)
VALUES (?, ?, ?, ?, ?)`,
			r.DocID, r.VersionID, string(r.Info), string(r.Findings), formatTime(r.CreatedAt))
	case store.SourceRecord:
		_, err = t.tx.ExecContext(ctx, `
INSERT INTO sources (doc_id, source, source_type, collector, title, content_hash, retrieved_at, verification_status, verified_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.DocID, r.Source, string(orUnknown(r.SourceType)), r.Collector, r.Title, r.ContentHash,
			formatTime(r.RetrievedAt), string(orUnverified(r.VerificationStatus)), formatTime(r.VerifiedAt))
	default:
		return fmt.Errorf("add: unsupported record %T: %w", r, internalerr.ErrInvalidInput)
	}
	if err != nil {
		return fmt.Errorf("add %T: %w", r, classify(err))
	}
	return nil
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (store.DocumentRecord, error) {
	var (
		d               store.DocumentRecord
		date, updatedAt string
		meta            sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, case_type, case_number, court, date, source, title, content, content_hash, metadata, updated_at
FROM documents WHERE id = ?`, id).Scan(
		&d.ID, &d.CaseType, &d.CaseNumber, &d.Court, &date, &d.Source, &d.Title,
		&d.Content, &d.ContentHash, &meta, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DocumentRecord{}, fmt.Errorf("document %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.DocumentRecord{}, err
	}
	d.Date = parseTime(date)
	d.UpdatedAt = parseTime(updatedAt)
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &d.Metadata); err != nil {
			return store.DocumentRecord{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return d, nil
}

// ProcessingRecords returns the processing log of a document, oldest first.
func (s *Store) ProcessingRecords(ctx context.Context, docID string) ([]store.ProcessingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT doc_id, status, stage, error, chunk_ids, duration_ms, created_at
FROM processing_records WHERE doc_id = ? ORDER BY id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ProcessingRecord
	for rows.Next() {
		var (
			r                 store.ProcessingRecord
			status, createdAt string
			ids               sql.NullString
			durationMS        int64
		)
		if err := rows.Scan(&r.DocID, &status, &r.Stage, &r.Error, &ids, &durationMS, &createdAt); err != nil {
			return nil, err
		}
		r.Status = store.Status(status)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt = parseTime(createdAt)
		if ids.Valid && ids.String != "" && ids.String != "null" {
			if err := json.Unmarshal([]byte(ids.String), &r.ChunkIDs); err != nil {
				return nil, fmt.Errorf("decode chunk ids: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Extractions returns the extraction records of a document.
func (s *Store) Extractions(ctx context.Context, docID string) ([]store.ExtractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT doc_id, version_id, info, findings, created_at
FROM extractions WHERE doc_id = ? ORDER BY created_at, version_id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ExtractionRecord
	for rows.Next() {
		var (
			r              store.ExtractionRecord
			info, findings sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&r.DocID, &r.VersionID, &info, &findings, &createdAt); err != nil {
			return nil, err
		}
		r.Info = []byte(info.String)
		r.Findings = []byte(findings.String)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

const sourceColumns = `doc_id, source, source_type, collector, title, content_hash, retrieved_at, verification_status, verified_at`

// Sources returns the source records of a document, oldest first.
func (s *Store) Sources(ctx context.Context, docID string) ([]store.SourceRecord, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE doc_id = ? ORDER BY id`, docID)
}

// SourcesByType returns every source record of type t, oldest first.
func (s *Store) SourcesByType(ctx context.Context, t store.SourceType) ([]store.SourceRecord, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE source_type = ? ORDER BY id`, string(t))
}

func (s *Store) querySources(ctx context.Context, query string, arg any) ([]store.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SourceRecord
	for rows.Next() {
		var (
			r                        store.SourceRecord
			sourceType, status       string
			source, collector, title sql.NullString
			hash, verifiedAt         sql.NullString
			retrievedAt              string
		)
		if err := rows.Scan(&r.DocID, &source, &sourceType, &collector, &title, &hash,
			&retrievedAt, &status, &verifiedAt); err != nil {
			return nil, err
		}
		r.Source, r.Collector, r.Title, r.ContentHash = source.String, collector.String, title.String, hash.String
		r.SourceType = store.SourceType(sourceType)
		r.VerificationStatus = store.VerificationStatus(status)
		r.RetrievedAt = parseTime(retrievedAt)
		r.VerifiedAt = parseTime(verifiedAt.String)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Put implements versions.Store.
func (s *Store) Put(ctx context.Context, v versions.Version, text string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO versions (doc_id, version_id, timestamp, hash, changes, processor_version, text)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.DocID, v.ID, formatTime(v.Timestamp), v.Hash, v.Changes, v.ProcessorVersion, text)
	if err != nil {
		return fmt.Errorf("put version %s: %w", v.ID, classify(err))
	}
	return nil
}

// Get implements versions.Store.
func (s *Store) Get(ctx context.Context, docID, versionID string) (versions.Version, string, error) {
	var (
		v    versions.Version
		ts   string
		text string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT doc_id, version_id, timestamp, hash, changes, processor_version, text
FROM versions WHERE doc_id = ? AND version_id = ?`, docID, versionID).Scan(
		&v.DocID, &v.ID, &ts, &v.Hash, &v.Changes, &v.ProcessorVersion, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return versions.Version{}, "", fmt.Errorf("version %s/%s: %w", docID, versionID, internalerr.ErrNotFound)
	}
	if err != nil {
		return versions.Version{}, "", err
	}
	v.Timestamp = parseTime(ts)
	return v, text, nil
}

// List implements versions.Store.
func (s *Store) List(ctx context.Context, docID string) ([]versions.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT doc_id, version_id, timestamp, hash, changes, processor_version
FROM versions WHERE doc_id = ?`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []versions.Version
	for rows.Next() {
		var (
			v  versions.Version
			ts string
		)
		if err := rows.Scan(&v.DocID, &v.ID, &ts, &v.Hash, &v.Changes, &v.ProcessorVersion); err != nil {
			return nil, err
		}
		v.Timestamp = parseTime(ts)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	versions.Sort(out)
	return out, nil
}

// Delete implements versions.Store.
func (s *Store) Delete(ctx context.Context, docID, versionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM versions WHERE doc_id = ? AND version_id = ?`, docID, versionID); err != nil {
		return fmt.Errorf("delete version %s: %w", versionID, err)
	}
	return nil
}

// classify maps constraint violations to internalerr.ErrDuplicate.
func classify(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%v: %w", err, internalerr.ErrDuplicate)
		}
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

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
