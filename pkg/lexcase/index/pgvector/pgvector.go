// Package pgvector stores chunk embeddings in PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cognicore/lexcase/pkg/lexcase/index"
	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

// DefaultTable holds the chunks when no table is configured.
const DefaultTable = "chunks"

var tableRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Index implements index.Index on a pgxpool.
type Index struct {
	pool     *pgxpool.Pool
	embedder index.Embedder
	table    string
}

var _ index.Index = (*Index)(nil)

// New returns an index over table. Call Init before first use.
func New(pool *pgxpool.Pool, embedder index.Embedder, table string) (*Index, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("table name %q: %w", table, internalerr.ErrInvalidConfig)
	}
	if embedder == nil || embedder.Dimensions() <= 0 {
		return nil, fmt.Errorf("pgvector index needs an embedder with fixed dimensions: %w", internalerr.ErrInvalidConfig)
	}
	return &Index{pool: pool, embedder: embedder, table: table}, nil
}

// Init enables the extension and creates the table.
func (x *Index) Init(ctx context.Context) error {
	if _, err := x.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %v: %w", err, internalerr.ErrIndexUnavailable)
	}
	if _, err := x.pool.Exec(ctx, createTableSQL(x.table, x.embedder.Dimensions())); err != nil {
		return fmt.Errorf("create %s: %v: %w", x.table, err, internalerr.ErrIndexUnavailable)
	}
	return nil
}

func createTableSQL(table string, dims int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	text TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	embedding vector(%[2]d) NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_metadata_idx ON %[1]s USING GIN (metadata);`, table, dims)
}

func searchSQL(table string) string {
	return fmt.Sprintf(`
SELECT id::text, text, metadata, 1 - (embedding <=> $1) AS score
FROM %s
WHERE metadata @> $2::jsonb
ORDER BY embedding <=> $1
LIMIT $3`, table)
}

func deleteSQL(table string) string {
	return fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1::uuid[])`, table)
}

// AddTexts embeds the texts and inserts them in one batch.
func (x *Index) AddTexts(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error) {
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, fmt.Errorf("add texts: %d texts, %d metadatas: %w", len(texts), len(metadatas), internalerr.ErrInvalidInput)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (text, metadata, embedding) VALUES ($1, $2, $3) RETURNING id::text`, x.table)

	batch := &pgx.Batch{}
	for i, text := range texts {
		vec, err := x.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		meta := map[string]string{}
		if metadatas != nil && metadatas[i] != nil {
			meta = metadatas[i]
		}
		batch.Queue(insert, text, meta, pgvector.NewVector(vec))
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %v: %w", err, internalerr.ErrIndexUnavailable)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	ids := make([]string, len(texts))
	for i := range texts {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			br.Close()
			return nil, fmt.Errorf("insert text %d: %v: %w", i, err, internalerr.ErrIndexUnavailable)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %v: %w", err, internalerr.ErrIndexUnavailable)
	}
	return ids, nil
}

// Delete removes chunks by id.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := x.pool.Exec(ctx, deleteSQL(x.table), ids); err != nil {
		return fmt.Errorf("delete from %s: %v: %w", x.table, err, internalerr.ErrIndexUnavailable)
	}
	return nil
}

// SimilaritySearch orders by cosine distance; Score is 1 - distance.
func (x *Index) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]string) ([]index.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	qv, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if filter == nil {
		filter = map[string]string{}
	}
	rows, err := x.pool.Query(ctx, searchSQL(x.table), pgvector.NewVector(qv), filter, k)
	if err != nil {
		return nil, fmt.Errorf("query %s: %v: %w", x.table, err, internalerr.ErrIndexUnavailable)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (index.Result, error) {
		var r index.Result
		err := row.Scan(&r.ID, &r.Text, &r.Metadata, &r.Score)
		return r, err
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return results, nil
}
