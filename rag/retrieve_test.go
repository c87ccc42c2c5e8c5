package rag

import (
	"context"
	"strings"
	"testing"

	"corpmind/vectorstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveEmptyWorkspaceReturnsNoDocuments(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, newFakeIndex(), 15)

	_, err := r.Retrieve(context.Background(), uuid.New(), "what is the refund policy?")
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestRetrieveThinContextReturnsNoContext(t *testing.T) {
	index := newFakeIndex()
	wsID := uuid.New()
	docID := uuid.New()
	require.NoError(t, index.EnsureCollection(context.Background(), wsID))
	require.NoError(t, index.Add(context.Background(), wsID, []vectorstore.Record{
		{ID: ChunkID(docID, 0), DocID: docID, Content: "ok", Embedding: []float32{1, 0, 0}},
	}))

	r := NewRetriever(&fakeEmbedder{}, index, 15)

	_, err := r.Retrieve(context.Background(), wsID, "anything")
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestRetrieveAssemblesContext(t *testing.T) {
	index := newFakeIndex()
	wsID := uuid.New()
	docID := uuid.New()
	chunk := strings.Repeat("the refund policy allows returns within 30 days. ", 3)
	require.NoError(t, index.EnsureCollection(context.Background(), wsID))
	require.NoError(t, index.Add(context.Background(), wsID, []vectorstore.Record{
		{ID: ChunkID(docID, 0), DocID: docID, Content: chunk, Embedding: []float32{1, 0, 0}},
		{ID: ChunkID(docID, 1), DocID: docID, Content: chunk, Embedding: []float32{0, 1, 0}},
	}))

	r := NewRetriever(&fakeEmbedder{}, index, 15)

	contextText, err := r.Retrieve(context.Background(), wsID, "refund policy?")
	require.NoError(t, err)
	assert.Contains(t, contextText, "refund policy")
	assert.Contains(t, contextText, ContextSeparator)
}

func TestRetrieveTenantIsolation(t *testing.T) {
	index := newFakeIndex()
	wsA := uuid.New()
	wsB := uuid.New()
	docID := uuid.New()
	chunk := strings.Repeat("workspace A secret content. ", 5)
	require.NoError(t, index.EnsureCollection(context.Background(), wsA))
	require.NoError(t, index.Add(context.Background(), wsA, []vectorstore.Record{
		{ID: ChunkID(docID, 0), DocID: docID, Content: chunk, Embedding: []float32{1, 0, 0}},
	}))

	r := NewRetriever(&fakeEmbedder{}, index, 15)

	// Same question against workspace B must never see A's vectors.
	_, err := r.Retrieve(context.Background(), wsB, "what is the secret content?")
	assert.ErrorIs(t, err, ErrNoDocuments)

	got, err := r.Retrieve(context.Background(), wsA, "what is the secret content?")
	require.NoError(t, err)
	assert.Contains(t, got, "workspace A secret")
}

func TestRetrieveEmbedFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{failEmbed: true}, newFakeIndex(), 15)

	_, err := r.Retrieve(context.Background(), uuid.New(), "q")
	assert.ErrorIs(t, err, ErrEmbedding)
}
