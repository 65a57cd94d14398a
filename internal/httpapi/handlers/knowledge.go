package handlers

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/soulink/companion-backend/internal/common"
	"github.com/soulink/companion-backend/internal/knowledge"
	"github.com/soulink/companion-backend/internal/store/rabbitmq"
)

const maxUploadBytes = 20 << 20 // 20 MiB

func newFileID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// UploadKnowledgeFile accepts a multipart document, records it as UPLOADED and
// queues ingestion. Returns 202: indexing happens in the worker.
func (h *Handler) UploadKnowledgeFile(c *gin.Context) {
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

	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "missing file field")
		return
	}
	if fh.Size > maxUploadBytes {
		common.Fail(c, http.StatusBadRequest, 10005, "file too large")
		return
	}
	name := filepath.Base(fh.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".txt" && ext != ".md" {
		common.Fail(c, http.StatusBadRequest, 10006, "unsupported file type (want .txt or .md)")
		return
	}

	fileID := newFileID()
	dir := filepath.Join(h.Cfg.UploadDir, comp.ID, fileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20004, "failed to store file")
		return
	}
	dst := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20004, "failed to store file")
		return
	}

	file := knowledge.File{
		ID:          fileID,
		CompanionID: comp.ID,
		FileName:    name,
		FilePath:    dst,
		Status:      knowledge.StatusUploaded,
	}
	if err := h.Files.Create(c.Request.Context(), &file); err != nil {
		_ = os.RemoveAll(dir)
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to register file")
		return
	}

	if err := h.Tasks.Publish(c.Request.Context(), rabbitmq.TaskMessage{
		Kind:   rabbitmq.TaskIngestFile,
		FileID: fileID,
	}); err != nil {
		// The row exists as UPLOADED; a queue outage here is recoverable by
		// re-publishing, so flag the file instead of losing the upload.
		slog.Error("failed to queue ingestion", "file_id", fileID, "error", err)
		msg := "failed to queue ingestion"
		_ = h.Files.SetStatus(c.Request.Context(), fileID, knowledge.StatusFailed, &msg)
		common.Fail(c, http.StatusInternalServerError, 20005, "failed to queue ingestion")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"code":    0,
		"message": "accepted",
		"data":    file,
	})
}

func (h *Handler) ListKnowledgeFiles(c *gin.Context) {
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
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to list files")
		return
	}

	common.OK(c, gin.H{
		"files":                 files,
		"knowledge_base_status": knowledge.AggregateStatus(files),
	})
}

// DeleteKnowledgeFile removes a document: vectors are purged by the worker,
// the row and the bytes on disk go now.
func (h *Handler) DeleteKnowledgeFile(c *gin.Context) {
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

	file, err := h.Files.GetByID(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "file not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if file.CompanionID != comp.ID {
		common.Fail(c, http.StatusNotFound, 40403, "file not found")
		return
	}

	if err := h.Tasks.Publish(c.Request.Context(), rabbitmq.TaskMessage{
		Kind:   rabbitmq.TaskCleanupFile,
		FileID: file.ID,
	}); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20005, "failed to queue cleanup")
		return
	}

	if err := h.Files.Delete(c.Request.Context(), file.ID); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to delete file")
		return
	}
	if file.FilePath != "" {
		if err := os.RemoveAll(filepath.Dir(file.FilePath)); err != nil {
			slog.Warn("failed to remove upload dir", "file_id", file.ID, "error", err)
		}
	}

	common.OK(c, gin.H{"deleted": true})
}
