package store

import (
	"context"
	"database/sql"
	"log"

	"corpmind/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBStorer interface {
	SaveDocument(context.Context, types.Document) error
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	ListDocuments(context.Context, uuid.UUID) ([]types.Document, error)
	DeleteDocument(context.Context, uuid.UUID) error
	DeleteDocumentsByWorkspace(context.Context, uuid.UUID) error
	SaveMessage(context.Context, types.ChatMessage) error
	DeleteMessagesByWorkspace(context.Context, uuid.UUID) error
	ListMessages(ctx context.Context, workspaceID, userID uuid.UUID) ([]types.ChatMessage, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

// Pool exposes the connection pool so the vector index can share it.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.Document) error {
	query := `INSERT INTO documents (id, workspace_id, filename, blob_path, mime_type, size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.pool.Exec(
		ctx,
		query,
		doc.ID,
		doc.WorkspaceID,
		doc.Filename,
		doc.BlobPath,
		doc.MimeType,
		doc.SizeBytes,
		doc.UploadedAt,
	)
	return err
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, workspace_id, filename, blob_path, mime_type, size_bytes, uploaded_at
		 FROM documents WHERE id = $1`, docID)

	doc := &types.Document{}
	if err := row.Scan(
		&doc.ID,
		&doc.WorkspaceID,
		&doc.Filename,
		&doc.BlobPath,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.UploadedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context, workspaceID uuid.UUID) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, workspace_id, filename, blob_path, mime_type, size_bytes, uploaded_at
		 FROM documents WHERE workspace_id = $1 ORDER BY uploaded_at DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.WorkspaceID,
			&doc.Filename,
			&doc.BlobPath,
			&doc.MimeType,
			&doc.SizeBytes,
			&doc.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", docID)
	return err
}

func (p *PostgresStore) DeleteDocumentsByWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE workspace_id = $1", workspaceID)
	return err
}

func (p *PostgresStore) DeleteMessagesByWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM messages WHERE workspace_id = $1", workspaceID)
	return err
}

func (p *PostgresStore) SaveMessage(ctx context.Context, msg types.ChatMessage) error {
	query := `INSERT INTO messages (id, workspace_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := p.pool.Exec(
		ctx,
		query,
		msg.ID,
		msg.WorkspaceID,
		msg.UserID,
		msg.Role,
		msg.Content,
		msg.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, workspaceID, userID uuid.UUID) ([]types.ChatMessage, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, workspace_id, user_id, role, content, created_at
		 FROM messages WHERE workspace_id = $1 AND user_id = $2 ORDER BY created_at ASC`,
		workspaceID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.WorkspaceID,
			&msg.UserID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		workspace_id UUID NOT NULL,
		filename TEXT NOT NULL,
		blob_path TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		uploaded_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_workspace_id ON documents(workspace_id);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		workspace_id UUID NOT NULL,
		user_id UUID NOT NULL,
		role TEXT CHECK (role IN ('user','assistant')),
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_workspace_id ON messages(workspace_id, user_id);
    `
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
