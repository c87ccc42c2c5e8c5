package rag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"

	"corpmind/types"
	"corpmind/vectorstore"

	"github.com/google/uuid"
)

// In-memory collaborators for pipeline tests.

type fakeDB struct {
	mu         sync.Mutex
	docs       map[uuid.UUID]types.Document
	msgs       []types.ChatMessage
	failSave   bool
	failDelete bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{docs: make(map[uuid.UUID]types.Document)}
}

func (f *fakeDB) SaveDocument(_ context.Context, doc types.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("db down")
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDB) GetDocumentByID(_ context.Context, id uuid.UUID) (*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (f *fakeDB) ListDocuments(_ context.Context, wsID uuid.UUID) ([]types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []types.Document
	for _, doc := range f.docs {
		if doc.WorkspaceID == wsID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (f *fakeDB) DeleteDocument(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("db down")
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDB) DeleteDocumentsByWorkspace(_ context.Context, wsID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, doc := range f.docs {
		if doc.WorkspaceID == wsID {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeDB) SaveMessage(_ context.Context, msg types.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeDB) ListMessages(_ context.Context, wsID, userID uuid.UUID) ([]types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ChatMessage
	for _, msg := range f.msgs {
		if msg.WorkspaceID == wsID && msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteMessagesByWorkspace(_ context.Context, wsID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.msgs[:0]
	for _, msg := range f.msgs {
		if msg.WorkspaceID != wsID {
			kept = append(kept, msg)
		}
	}
	f.msgs = kept
	return nil
}

type fakeBlobs struct {
	mu       sync.Mutex
	files    map[string][]byte
	nextID   int
	failSave bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{files: make(map[string][]byte)}
}

func (f *fakeBlobs) Save(filename string, r io.Reader) (string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return "", 0, errors.New("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.nextID++
	path := fmt.Sprintf("blobs/%d-%s", f.nextID, filename)
	f.files[path] = data
	return path, int64(len(data)), nil
}

func (f *fakeBlobs) Delete(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	return nil
}

type fakeIndex struct {
	mu         sync.Mutex
	records    map[uuid.UUID]map[string]vectorstore.Record
	failAdd    bool
	failEnsure bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[uuid.UUID]map[string]vectorstore.Record)}
}

func (f *fakeIndex) EnsureCollection(_ context.Context, wsID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnsure {
		return errors.New("vector store unreachable")
	}
	if f.records[wsID] == nil {
		f.records[wsID] = make(map[string]vectorstore.Record)
	}
	return nil
}

func (f *fakeIndex) Add(_ context.Context, wsID uuid.UUID, recs []vectorstore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd {
		return errors.New("vector store rejected write")
	}
	for _, r := range recs {
		f.records[wsID][r.ID] = r
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, wsID uuid.UUID, _ []float32, k int) ([]types.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll, ok := f.records[wsID]
	if !ok {
		return nil, nil
	}
	var passages []types.Passage
	for _, r := range coll {
		if len(passages) == k {
			break
		}
		passages = append(passages, types.Passage{ID: r.ID, DocID: r.DocID, Content: r.Content})
	}
	return passages, nil
}

func (f *fakeIndex) DeleteByDoc(_ context.Context, wsID, docID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll, ok := f.records[wsID]
	if !ok {
		return nil
	}
	for id, r := range coll {
		if r.DocID == docID {
			delete(coll, id)
		}
	}
	return nil
}

func (f *fakeIndex) DeleteCollection(_ context.Context, wsID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, wsID)
	return nil
}

func (f *fakeIndex) count(wsID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[wsID])
}

type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	failBatch bool
	failEmbed bool
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failEmbed {
		return nil, errors.New("model crashed")
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failBatch {
		return nil, errors.New("model crashed")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}
