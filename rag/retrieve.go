package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"corpmind/model"
	"corpmind/vectorstore"

	"github.com/google/uuid"
)

// DefaultTopK is how many passages a question pulls from the collection.
const DefaultTopK = 15

// MinContextLength is the minimum assembled context size considered
// informative enough to ground an answer.
const MinContextLength = 50

// ContextSeparator joins ranked passages into one context window. It stays
// visible in the prompt so the model sees passage boundaries.
const ContextSeparator = "\n\n---\n\n"

// Retriever embeds a question and assembles the top-k matching passages from
// the workspace collection into one context window.
type Retriever struct {
	embedder model.EmbedderInterface
	index    vectorstore.Indexer
	topK     int
	logger   *slog.Logger
}

func NewRetriever(embedder model.EmbedderInterface, index vectorstore.Indexer, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   slog.Default().With("component", "retriever"),
	}
}

// Retrieve returns the concatenated context for the question, best passages
// first. ErrNoDocuments means the workspace has nothing indexed (the common
// case for a fresh workspace, not a failure); ErrNoContext means matches
// exist but are too thin to ground an answer.
func (r *Retriever) Retrieve(ctx context.Context, workspaceID uuid.UUID, question string) (string, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	passages, err := r.index.Query(ctx, workspaceID, vec, r.topK)
	if err != nil {
		return "", fmt.Errorf("query workspace collection: %w", err)
	}
	if len(passages) == 0 {
		r.logger.Info("[CHAT] no passages for workspace", "workspace", workspaceID)
		return "", ErrNoDocuments
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}
	contextText := strings.Join(texts, ContextSeparator)
	r.logger.Info("[CHAT] context assembled", "chars", len(contextText), "passages", len(passages))

	if len(contextText) < MinContextLength {
		return "", ErrNoContext
	}
	return contextText, nil
}
