package rag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"corpmind/store"
	"corpmind/vectorstore"

	"github.com/google/uuid"
)

// Deleter removes documents and whole workspaces from all three stores.
// Vector and blob removal are best-effort; the relational row is the
// authoritative existence record and its deletion must succeed.
type Deleter struct {
	db     store.DBStorer
	blobs  store.BlobStorer
	index  vectorstore.Indexer
	logger *slog.Logger
}

func NewDeleter(db store.DBStorer, blobs store.BlobStorer, index vectorstore.Indexer) *Deleter {
	return &Deleter{
		db:     db,
		blobs:  blobs,
		index:  index,
		logger: slog.Default().With("component", "deleter"),
	}
}

// DeleteDocument removes one document's vectors, blob and row. The first two
// steps tolerate absence (a repeated delete finds nothing and no-ops); a row
// delete failure fails the call, since a silently surviving row would claim a
// document that no longer has content.
func (d *Deleter) DeleteDocument(ctx context.Context, docID, callerWorkspaceID uuid.UUID) error {
	doc, err := d.db.GetDocumentByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("load document: %w", err)
	}
	if doc.WorkspaceID != callerWorkspaceID {
		return ErrWrongWorkspace
	}

	if err := d.index.DeleteByDoc(ctx, doc.WorkspaceID, docID); err != nil {
		d.logger.Error("delete vectors failed, continuing", "doc", docID, "err", err)
	}

	if err := d.blobs.Delete(doc.BlobPath); err != nil {
		d.logger.Error("delete blob failed, continuing", "path", doc.BlobPath, "err", err)
	}

	if err := d.db.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document row: %w", err)
	}

	d.logger.Info("[RAG] document deleted", "doc", docID)
	return nil
}

// DeleteWorkspace drops the workspace's whole collection in one call instead
// of per-document filtered deletes, removes every blob enumerated from the
// relational store, then the rows.
func (d *Deleter) DeleteWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	docs, err := d.db.ListDocuments(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("list workspace documents: %w", err)
	}

	for _, doc := range docs {
		if err := d.blobs.Delete(doc.BlobPath); err != nil {
			d.logger.Error("delete blob failed, continuing", "path", doc.BlobPath, "err", err)
		}
	}

	if err := d.index.DeleteCollection(ctx, workspaceID); err != nil {
		d.logger.Error("drop collection failed, continuing", "workspace", workspaceID, "err", err)
	}

	if err := d.db.DeleteDocumentsByWorkspace(ctx, workspaceID); err != nil {
		return fmt.Errorf("delete workspace document rows: %w", err)
	}
	if err := d.db.DeleteMessagesByWorkspace(ctx, workspaceID); err != nil {
		return fmt.Errorf("delete workspace messages: %w", err)
	}

	d.logger.Info("[RAG] workspace purged", "workspace", workspaceID, "documents", len(docs))
	return nil
}
