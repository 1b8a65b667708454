package documents

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"compliance-backend/internal/shared/server/respond"
)

const maxUploadBytes = 50 << 20

// Handler wires HTTP handlers to the documents service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents/:id", h.getDocument)
}

func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the upload limit", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read upload", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read upload", nil)
		return
	}

	doc, err := h.Svc.Ingest(c.Request.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", "could not extract text from the uploaded file", nil)
		return
	}
	c.Set("documentId", doc.ID)

	respond.JSON(c, http.StatusCreated, gin.H{
		"document_id": doc.ID,
		"file_name":   doc.FileName,
		"size_bytes":  doc.SizeBytes,
		"chunks":      len(doc.Chunks),
	})
}

func (h *Handler) getDocument(c *gin.Context) {
	documentID := c.Param("id")
	doc, err := h.Svc.Repo.GetByID(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch document", nil)
		return
	}

	respond.OK(c, gin.H{
		"document_id": doc.ID,
		"file_name":   doc.FileName,
		"mime_type":   doc.MimeType,
		"size_bytes":  doc.SizeBytes,
		"indexed_at":  doc.IndexedAt,
		"created_at":  doc.CreatedAt,
	})
}
