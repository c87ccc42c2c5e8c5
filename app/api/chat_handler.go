package api

import (
	"corpmind/chat"
	"corpmind/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// HandleSend runs one chat turn and returns the assistant message. Retrieval
// and generation problems are absorbed into the answer text downstream; only
// persistence failures reach the error handler.
func (h *ChatHandler) HandleSend(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	msg, err := h.svc.Send(c.UserContext(), workspaceID, userID, params.Content)
	if err != nil {
		return err
	}
	return c.JSON(msg)
}

func (h *ChatHandler) HandleHistory(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	msgs, err := h.svc.History(c.UserContext(), workspaceID, userID)
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}
