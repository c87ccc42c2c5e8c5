package api

import (
	"errors"

	"corpmind/rag"
	"corpmind/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MaxUploadSize caps a single uploaded file.
const MaxUploadSize = 10 * 1024 * 1024

var allowedMimeTypes = map[string]bool{
	rag.MimePDF:   true,
	rag.MimeDOCX:  true,
	rag.MimePlain: true,
}

type FileHandler struct {
	ingestor *rag.Ingestor
	deleter  *rag.Deleter
	db       store.DBStorer
}

func NewFileHandler(ingestor *rag.Ingestor, deleter *rag.Deleter, db store.DBStorer) *FileHandler {
	return &FileHandler{
		ingestor: ingestor,
		deleter:  deleter,
		db:       db,
	}
}

// HandleUpload ingests a multipart file into the workspace. On failure the
// pipeline has already rolled every store back; the handler only translates
// the error.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	if _, err := callerID(c); err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "no file uploaded")
	}
	if fileHeader.Size > MaxUploadSize {
		return NewError(fiber.StatusRequestEntityTooLarge, "file exceeds 10MB limit")
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !allowedMimeTypes[mimeType] {
		return NewError(fiber.StatusUnsupportedMediaType, "invalid file type, allowed: PDF, DOCX, TXT")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	doc, err := h.ingestor.Ingest(c.UserContext(), rag.Upload{
		WorkspaceID: workspaceID,
		Filename:    fileHeader.Filename,
		MimeType:    mimeType,
		Body:        file,
	})
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrParse):
			return NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, rag.ErrContentTooShort):
			return NewError(fiber.StatusUnprocessableEntity, err.Error())
		default:
			return err
		}
	}

	return c.JSON(doc)
}

func (h *FileHandler) HandleList(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	docs, err := h.db.ListDocuments(c.UserContext(), workspaceID)
	if err != nil {
		return err
	}
	return c.JSON(docs)
}

func (h *FileHandler) HandleDelete(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	docID, err := uuid.Parse(c.Params("docID"))
	if err != nil {
		return ErrInvalidID()
	}

	if err := h.deleter.DeleteDocument(c.UserContext(), docID, workspaceID); err != nil {
		switch {
		case errors.Is(err, rag.ErrDocumentNotFound):
			return ErrNotFound(docID, "document")
		case errors.Is(err, rag.ErrWrongWorkspace):
			return NewError(fiber.StatusForbidden, "document belongs to another workspace")
		default:
			return err
		}
	}
	return c.JSON(fiber.Map{"message": "Document deleted successfully"})
}

// HandleDeleteWorkspace purges every document, vector and message of a
// workspace. The workspace row itself belongs to the collaborating service.
func (h *FileHandler) HandleDeleteWorkspace(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	if err := h.deleter.DeleteWorkspace(c.UserContext(), workspaceID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Workspace content deleted successfully"})
}

// callerID reads the authenticated user id set by the fronting auth layer.
func callerID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Get("X-User-ID"))
	if err != nil {
		return uuid.Nil, ErrUnAuthorized("missing or invalid X-User-ID header")
	}
	return id, nil
}
