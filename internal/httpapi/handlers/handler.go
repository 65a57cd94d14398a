package handlers

import (
	"context"

	"gorm.io/gorm"

	"github.com/soulink/companion-backend/internal/chat"
	"github.com/soulink/companion-backend/internal/companion"
	"github.com/soulink/companion-backend/internal/config"
	"github.com/soulink/companion-backend/internal/knowledge"
	"github.com/soulink/companion-backend/internal/store/rabbitmq"
)

// TaskPublisher hands knowledge background tasks to the queue.
type TaskPublisher interface {
	Publish(ctx context.Context, task rabbitmq.TaskMessage) error
}

type Handler struct {
	DB           *gorm.DB
	Cfg          config.Config
	Companions   *companion.Service
	ChatRepo     *chat.Repo
	Orchestrator *chat.Orchestrator
	Files        *knowledge.FileRepo
	Tasks        TaskPublisher
}

func NewHandler(
	db *gorm.DB,
	cfg config.Config,
	companions *companion.Service,
	chatRepo *chat.Repo,
	orchestrator *chat.Orchestrator,
	files *knowledge.FileRepo,
	tasks TaskPublisher,
) *Handler {
	return &Handler{
		DB:           db,
		Cfg:          cfg,
		Companions:   companions,
		ChatRepo:     chatRepo,
		Orchestrator: orchestrator,
		Files:        files,
		Tasks:        tasks,
	}
}
