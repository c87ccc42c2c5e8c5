package rag

import "errors"

var (
	// ErrParse marks an unreadable, corrupt or unsupported file. Terminal for
	// the ingestion attempt; the user must re-upload a valid file.
	ErrParse = errors.New("failed to parse document content")

	// ErrContentTooShort marks a file that parsed but yielded negligible
	// text. A document with zero chunks would violate the no-orphans
	// invariant, so this is terminal too.
	ErrContentTooShort = errors.New("file content is empty or too short")

	// ErrEmbedding marks an embedding model failure. The process-wide model
	// state stays reusable for later requests.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndex marks a vector store failure and triggers rollback.
	ErrIndex = errors.New("vector index write failed")

	// ErrNoDocuments is returned by retrieval when the workspace has no
	// indexed passages at all.
	ErrNoDocuments = errors.New("no documents in workspace")

	// ErrNoContext is returned by retrieval when the assembled context is too
	// thin to ground an answer.
	ErrNoContext = errors.New("not enough context found")

	// ErrDocumentNotFound is returned by deletion when no row exists for the
	// given id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrWrongWorkspace is returned when a document does not belong to the
	// caller's workspace.
	ErrWrongWorkspace = errors.New("document belongs to another workspace")
)
