package types

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Document is the relational record of an uploaded file. A row exists only
// while its blob on disk and its vectors in the workspace collection exist.
type Document struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Filename    string    `json:"filename"`
	BlobPath    string    `json:"blob_path"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ChatMessage is one turn of the append-only workspace conversation log.
type ChatMessage struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Passage is one retrieved vector hit with its stored text.
type Passage struct {
	ID         string
	DocID      uuid.UUID
	Content    string
	Similarity float64
}
