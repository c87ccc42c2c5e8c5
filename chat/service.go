// Package chat orchestrates one conversation turn: persist the user message,
// answer it from the workspace's documents, persist the assistant message.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"corpmind/agent"
	"corpmind/rag"
	"corpmind/store"
	"corpmind/types"

	"github.com/google/uuid"
)

// ContextRetriever is rag.Retriever's surface as consumed here.
type ContextRetriever interface {
	Retrieve(ctx context.Context, workspaceID uuid.UUID, question string) (string, error)
}

// AnswerGenerator is agent.Generator's surface as consumed here.
type AnswerGenerator interface {
	Answer(ctx context.Context, question, contextText string) string
}

type Service struct {
	db        store.DBStorer
	retriever ContextRetriever
	generator AnswerGenerator
	logger    *slog.Logger
}

func NewService(db store.DBStorer, retriever ContextRetriever, generator AnswerGenerator) *Service {
	return &Service{
		db:        db,
		retriever: retriever,
		generator: generator,
		logger:    slog.Default().With("component", "chat"),
	}
}

// Send runs one chat turn and returns the persisted assistant message.
// The user message is written before the model is involved, and the
// assistant message only after an answer exists, so an LLM failure can never
// corrupt the visible conversation — it degrades to a fixed apology instead.
// Only message-store failures surface as errors.
func (s *Service) Send(ctx context.Context, workspaceID, userID uuid.UUID, content string) (*types.ChatMessage, error) {
	s.logger.Info("[CHAT] question received", "workspace", workspaceID)

	userMsg := types.ChatMessage{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        types.RoleUser,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	answer := s.answer(ctx, workspaceID, content)

	assistantMsg := types.ChatMessage{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        types.RoleAssistant,
		Content:     answer,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.SaveMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}
	return &assistantMsg, nil
}

// answer maps every retrieval outcome to answer text. No model call is made
// on the no-context paths.
func (s *Service) answer(ctx context.Context, workspaceID uuid.UUID, question string) string {
	contextText, err := s.retriever.Retrieve(ctx, workspaceID, question)
	switch {
	case err == nil:
		return s.generator.Answer(ctx, question, contextText)
	case errors.Is(err, rag.ErrNoDocuments):
		return agent.NoDocumentsMessage
	case errors.Is(err, rag.ErrNoContext):
		return agent.NoAnswerMessage
	default:
		s.logger.Error("[CHAT] retrieval failed", "workspace", workspaceID, "err", err)
		return agent.ApologyMessage
	}
}

// History returns the caller's conversation log for the workspace, oldest
// first.
func (s *Service) History(ctx context.Context, workspaceID, userID uuid.UUID) ([]types.ChatMessage, error) {
	return s.db.ListMessages(ctx, workspaceID, userID)
}
