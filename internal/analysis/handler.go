package analysis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"compliance-backend/internal/documents"
	"compliance-backend/internal/progress"
	"compliance-backend/internal/ratelimit"
	"compliance-backend/internal/shared/server/respond"
	"compliance-backend/internal/shared/telemetry"
	"compliance-backend/internal/vectorstore"
)

// Handler exposes the analysis lifecycle over HTTP: start (fire-and-forget),
// then poll progress and results through the persisted records.
type Handler struct {
	Orchestrator *Orchestrator
	Runs         Repo
	Tracker      *progress.Tracker
	Governor     *ratelimit.Governor
	Docs         documents.Repo
	Index        vectorstore.Builder
}

type analyzeRequest struct {
	Framework string   `json:"framework" binding:"required"`
	Standards []string `json:"standards" binding:"required"`
	Mode      string   `json:"processing_mode"`
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/analyze", h.startAnalysis)
	rg.GET("/documents/:id/progress", h.getProgress)
	rg.GET("/documents/:id/results", h.getResults)
	rg.GET("/rate-limit-status", h.rateLimitStatus)
}

func (h *Handler) startAnalysis(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "framework and standards are required", nil)
		return
	}
	mode, err := ParseMode(req.Mode)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	text, err := h.Docs.GetText(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load document", nil)
		return
	}

	if !h.Index.Has(documentID) {
		chunks, err := h.Docs.GetChunks(c.Request.Context(), documentID)
		if err != nil || len(chunks) == 0 {
			respond.Error(c, http.StatusUnprocessableEntity, "no_chunks", "document has no indexable content", nil)
			return
		}
		if !h.Index.Build(c.Request.Context(), documentID, chunks) {
			respond.Error(c, http.StatusInternalServerError, "index_failed", "failed to build the document index", nil)
			return
		}
		if err := h.Docs.MarkIndexed(c.Request.Context(), documentID, time.Now().UTC()); err != nil {
			telemetry.Warn("analysis.mark_indexed_failed", map[string]any{
				"document_id": documentID,
				"error":       err.Error(),
			})
		}
	}

	// The run outlives this request; pollers observe it via the persisted
	// run and progress records.
	go h.Orchestrator.Run(context.Background(), documentID, text, req.Framework, req.Standards, mode)

	respond.JSON(c, http.StatusAccepted, gin.H{
		"document_id":     documentID,
		"status":          StatusProcessing,
		"processing_mode": string(mode),
		"standards":       req.Standards,
	})
}

func (h *Handler) getProgress(c *gin.Context) {
	documentID := c.Param("id")
	snapshot, err := h.Tracker.GetProgress(documentID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "no analysis in progress for document", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load progress", nil)
		return
	}
	respond.OK(c, snapshot)
}

func (h *Handler) getResults(c *gin.Context) {
	documentID := c.Param("id")
	run, err := h.Runs.Get(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "no analysis results for document", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load results", nil)
		return
	}
	respond.OK(c, run)
}

func (h *Handler) rateLimitStatus(c *gin.Context) {
	respond.OK(c, h.Governor.Status())
}
