package checklist

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"compliance-backend/internal/shared/server/respond"
)

// Handler serves checklist question sets.
type Handler struct {
	Repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches checklist routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/checklists/:framework/:standard", h.getChecklist)
}

func (h *Handler) getChecklist(c *gin.Context) {
	cl, err := h.Repo.Load(c.Request.Context(), c.Param("framework"), c.Param("standard"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "checklist not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load checklist", nil)
		return
	}
	respond.OK(c, cl)
}
