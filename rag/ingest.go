package rag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"corpmind/model"
	"corpmind/store"
	"corpmind/types"
	"corpmind/vectorstore"

	"github.com/google/uuid"
)

// MinContentLength is the minimum extracted text length for a document to be
// worth indexing.
const MinContentLength = 10

// Upload is one file handed to ingestion by the collaborator layer.
type Upload struct {
	WorkspaceID uuid.UUID
	Filename    string
	MimeType    string
	Body        io.Reader
}

// Ingestor runs the pipeline blob → row → extract → chunk → embed → index.
// There is no transaction spanning the three stores; consistency comes from
// compensating actions unwound on failure.
type Ingestor struct {
	db        store.DBStorer
	blobs     store.BlobStorer
	index     vectorstore.Indexer
	embedder  model.EmbedderInterface
	extractor TextExtractor
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

func NewIngestor(db store.DBStorer, blobs store.BlobStorer, index vectorstore.Indexer,
	embedder model.EmbedderInterface, extractor TextExtractor, chunkSize, overlap int) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	return &Ingestor{
		db:        db,
		blobs:     blobs,
		index:     index,
		embedder:  embedder,
		extractor: extractor,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    slog.Default().With("component", "ingestor"),
	}
}

// ChunkID is the vector record id of one chunk of one document. The scheme is
// unique per document, which is what makes targeted deletion possible.
func ChunkID(docID uuid.UUID, i int) string {
	return fmt.Sprintf("doc_%s_chunk_%d", docID, i)
}

// Ingest stores the upload and makes it queryable, or leaves no trace.
// The Document row is written before indexing so the caller has a stable id;
// on any later failure the compensation stack removes vectors, row and blob
// in that order, each step best-effort so one failure cannot block the rest.
// The original error is returned unmasked.
func (ing *Ingestor) Ingest(ctx context.Context, up Upload) (*types.Document, error) {
	docID := uuid.New()

	var compensations []func()
	unwind := func() {
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i]()
		}
	}
	// Rollback must run even when the failure was the caller's deadline.
	cleanupCtx := context.WithoutCancel(ctx)

	// 1. Blob first: everything downstream reads from disk.
	blobPath, size, err := ing.blobs.Save(up.Filename, up.Body)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}
	compensations = append(compensations, func() {
		if err := ing.blobs.Delete(blobPath); err != nil {
			ing.logger.Error("rollback: delete blob failed", "path", blobPath, "err", err)
		}
	})

	// 2. Relational row before indexing, so the id is referenceable.
	doc := &types.Document{
		ID:          docID,
		WorkspaceID: up.WorkspaceID,
		Filename:    up.Filename,
		BlobPath:    blobPath,
		MimeType:    up.MimeType,
		SizeBytes:   size,
		UploadedAt:  time.Now().UTC(),
	}
	if err := ing.db.SaveDocument(ctx, *doc); err != nil {
		unwind()
		return nil, fmt.Errorf("save document row: %w", err)
	}
	compensations = append(compensations, func() {
		if err := ing.db.DeleteDocument(cleanupCtx, docID); err != nil {
			ing.logger.Error("rollback: delete document row failed", "doc", docID, "err", err)
		}
	})

	ing.logger.Info("[RAG] reading file", "path", blobPath, "mime", up.MimeType)
	text, err := ing.extractor.Extract(ctx, blobPath, up.MimeType)
	if err != nil {
		unwind()
		return nil, err
	}

	if len(text) < MinContentLength {
		unwind()
		return nil, ErrContentTooShort
	}

	chunks := SplitText(text, ing.chunkSize, ing.overlap)
	if len(chunks) == 0 {
		unwind()
		return nil, ErrContentTooShort
	}
	ing.logger.Info("[RAG] split into chunks", "doc", docID, "chunks", len(chunks))
	ing.warnOversizedChunks(chunks)

	vectors, err := ing.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		unwind()
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	recs := make([]vectorstore.Record, len(chunks))
	for i := range chunks {
		recs[i] = vectorstore.Record{
			ID:        ChunkID(docID, i),
			DocID:     docID,
			Source:    blobPath,
			Content:   chunks[i],
			Embedding: vectors[i],
		}
	}

	// Registered before Add so a partial batch insert still gets cleaned up.
	compensations = append(compensations, func() {
		if err := ing.index.DeleteByDoc(cleanupCtx, up.WorkspaceID, docID); err != nil {
			ing.logger.Error("rollback: delete vectors failed", "doc", docID, "err", err)
		}
	})
	if err := ing.index.EnsureCollection(ctx, up.WorkspaceID); err != nil {
		unwind()
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	if err := ing.index.Add(ctx, up.WorkspaceID, recs); err != nil {
		unwind()
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}

	ing.logger.Info("[RAG] document indexed successfully", "doc", docID)
	return doc, nil
}

// warnOversizedChunks surfaces chunks whose token count exceeds the embedding
// model's sequence length. Those chunks get truncated silently inside the
// model, which shows up as degraded recall for non-Latin scripts.
func (ing *Ingestor) warnOversizedChunks(chunks []string) {
	for i, chunk := range chunks {
		n, err := model.CountTokens(chunk)
		if err != nil {
			return
		}
		if n > model.EmbedTokenLimit {
			ing.logger.Warn("chunk exceeds embedding token limit, tail will be truncated by the model",
				"chunk", i, "tokens", n, "limit", model.EmbedTokenLimit)
		}
	}
}
