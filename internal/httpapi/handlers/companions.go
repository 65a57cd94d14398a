package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soulink/companion-backend/internal/common"
	"github.com/soulink/companion-backend/internal/companion"
	"github.com/soulink/companion-backend/internal/knowledge"
	"github.com/soulink/companion-backend/internal/store/rabbitmq"
)

type createCompanionReq struct {
	Name         string `json:"name" binding:"required,max=100"`
	Description  string `json:"description" binding:"max=2000"`
	Instructions string `json:"instructions" binding:"max=8000"`
	Seed         string `json:"seed" binding:"max=4000"`
	AvatarURL    string `json:"avatar_url" binding:"max=1024"`
}

func (h *Handler) CreateCompanion(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createCompanionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	comp, err := h.Companions.Create(c.Request.Context(), uid, companion.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
		Seed:         req.Seed,
		AvatarURL:    req.AvatarURL,
	})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to create companion")
		return
	}

	common.OK(c, comp)
}

func (h *Handler) ListCompanions(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	comps, err := h.Companions.List(c.Request.Context(), uid, offset, limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to list companions")
		return
	}

	common.OK(c, gin.H{"companions": comps})
}

func (h *Handler) GetCompanion(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	comp, err := h.Companions.Get(c.Request.Context(), uid, c.Param("companion_id"))
	if err != nil {
		h.companionError(c, err)
		return
	}

	files, err := h.Files.ListByCompanion(c.Request.Context(), comp.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to load knowledge files")
		return
	}

	common.OK(c, gin.H{
		"companion":             comp,
		"knowledge_base_status": knowledge.AggregateStatus(files),
	})
}

type updateCompanionReq struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Instructions *string `json:"instructions"`
	Seed         *string `json:"seed"`
	AvatarURL    *string `json:"avatar_url"`
}

func (h *Handler) UpdateCompanion(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updateCompanionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	comp, err := h.Companions.Update(c.Request.Context(), uid, c.Param("companion_id"), companion.UpdateInput{
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
		Seed:         req.Seed,
		AvatarURL:    req.AvatarURL,
	})
	if err != nil {
		h.companionError(c, err)
		return
	}

	common.OK(c, comp)
}

func (h *Handler) DeleteCompanion(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := c.Param("companion_id")
	if err := h.Companions.Delete(c.Request.Context(), uid, id); err != nil {
		h.companionError(c, err)
		return
	}

	// Queued sweep behind the synchronous purge: an ingestion finishing
	// mid-delete can still land chunks after the purge ran.
	if err := h.Tasks.Publish(c.Request.Context(), rabbitmq.TaskMessage{
		Kind:        rabbitmq.TaskCleanupCompanion,
		CompanionID: id,
	}); err != nil {
		slog.Warn("failed to queue companion cleanup sweep", "companion_id", id, "error", err)
	}

	common.OK(c, gin.H{"deleted": true})
}

// companionError maps the companion service sentinels onto HTTP responses.
func (h *Handler) companionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, companion.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "companion not found")
	case errors.Is(err, companion.ErrForbidden):
		common.Fail(c, http.StatusForbidden, 40301, "companion belongs to another user")
	default:
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
	}
}
