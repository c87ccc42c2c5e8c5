package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"corpmind/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Indexer is the vector store contract the orchestrators consume. All
// operations are scoped to the workspace-derived collection.
type Indexer interface {
	EnsureCollection(ctx context.Context, workspaceID uuid.UUID) error
	Add(ctx context.Context, workspaceID uuid.UUID, recs []Record) error
	Query(ctx context.Context, workspaceID uuid.UUID, vec []float32, k int) ([]types.Passage, error)
	DeleteByDoc(ctx context.Context, workspaceID, docID uuid.UUID) error
	DeleteCollection(ctx context.Context, workspaceID uuid.UUID) error
}

// Record is one embedded passage as stored in a collection.
type Record struct {
	ID        string
	DocID     uuid.UUID
	Source    string
	Content   string
	Embedding []float32
}

// Index keeps one Postgres table per workspace so tenant isolation is
// structural: a query against one workspace cannot reach another's rows.
type Index struct {
	pool   *pgxpool.Pool
	dims   int
	logger *slog.Logger
}

// undefined_table: reads and filtered deletes against a workspace that never
// ingested anything are the common case, not an error.
const sqlstateUndefinedTable = "42P01"

func NewIndex(pool *pgxpool.Pool, dims int) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vectorstore: invalid dimension %d", dims)
	}
	return &Index{
		pool:   pool,
		dims:   dims,
		logger: slog.Default().With("component", "vectorstore"),
	}, nil
}

// Init installs the pgvector extension.
func (ix *Index) Init(ctx context.Context) error {
	_, err := ix.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	return err
}

// collectionTable derives the table name from the workspace id. Only hex
// characters survive, so the identifier is always legal SQL.
func collectionTable(workspaceID uuid.UUID) string {
	return "rag_ws_" + strings.ReplaceAll(workspaceID.String(), "-", "")
}

// EnsureCollection creates the workspace collection if missing. Idempotent.
func (ix *Index) EnsureCollection(ctx context.Context, workspaceID uuid.UUID) error {
	table := collectionTable(workspaceID)
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		doc_id UUID NOT NULL,
		source TEXT,
		content TEXT NOT NULL,
		embedding vector(%[2]d)
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_id ON %[1]s(doc_id);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);
	`, table, ix.dims)

	if _, err := ix.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure collection %s: %w", table, err)
	}
	return nil
}

// Add batch-inserts records into the workspace collection. Record ids must be
// unique within the collection; ingestion derives them from document id and
// chunk index.
func (ix *Index) Add(ctx context.Context, workspaceID uuid.UUID, recs []Record) error {
	table := collectionTable(workspaceID)
	query := fmt.Sprintf(`
    INSERT INTO %s (id, doc_id, source, content, embedding)
    VALUES ($1, $2, $3, $4, $5)
    `, table)

	for i := range recs {
		r := &recs[i]
		if len(r.Embedding) != ix.dims {
			return fmt.Errorf("record %s: embedding has %d dimensions, collection expects %d", r.ID, len(r.Embedding), ix.dims)
		}
		_, err := ix.pool.Exec(ctx, query, r.ID, r.DocID, r.Source, r.Content, toPgVector(r.Embedding))
		if err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	return nil
}

// Query returns the k nearest passages by cosine similarity, best first.
// A workspace with no collection yields no results.
func (ix *Index) Query(ctx context.Context, workspaceID uuid.UUID, vec []float32, k int) ([]types.Passage, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	table := collectionTable(workspaceID)
	query := fmt.Sprintf(`
		SELECT id, doc_id, content, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, table)

	rows, err := ix.pool.Query(ctx, query, pgvector.NewVector(vec), k)
	if err != nil {
		if isUndefinedTable(err) {
			ix.logger.Info("collection not found (empty workspace)", "workspace", workspaceID)
			return nil, nil
		}
		return nil, fmt.Errorf("query collection %s: %w", table, err)
	}
	defer rows.Close()

	var passages []types.Passage
	for rows.Next() {
		var p types.Passage
		if err := rows.Scan(&p.ID, &p.DocID, &p.Content, &p.Similarity); err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}
	// Depending on the pgx query exec mode the missing-table error can
	// surface here instead of on pool.Query.
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			ix.logger.Info("collection not found (empty workspace)", "workspace", workspaceID)
			return nil, nil
		}
		return nil, fmt.Errorf("query collection %s: %w", table, err)
	}
	return passages, nil
}

// DeleteByDoc removes every record of one document from the workspace
// collection. Missing collection is a no-op.
func (ix *Index) DeleteByDoc(ctx context.Context, workspaceID, docID uuid.UUID) error {
	table := collectionTable(workspaceID)
	tag, err := ix.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", table), docID)
	if err != nil {
		if isUndefinedTable(err) {
			return nil
		}
		return fmt.Errorf("delete vectors for doc %s: %w", docID, err)
	}
	ix.logger.Info("deleted vectors", "doc", docID, "count", tag.RowsAffected())
	return nil
}

// DeleteCollection drops the whole workspace collection.
func (ix *Index) DeleteCollection(ctx context.Context, workspaceID uuid.UUID) error {
	table := collectionTable(workspaceID)
	if _, err := ix.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("drop collection %s: %w", table, err)
	}
	return nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateUndefinedTable
}

func toPgVector(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%f", x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
