package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/flows"
)

// TaskReader — доступ к записям задач, нужный API напрямую
// (статус отдельной задачи). Реализуется repo.TaskRepo.
type TaskReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flows  *flows.Controller
	tasks  TaskReader
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Flows  *flows.Controller
	Tasks  TaskReader
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		flows:  cfg.Flows,
		tasks:  cfg.Tasks,
		logger: cfg.Logger,
	}
}
