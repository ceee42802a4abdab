package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
)

// Flow DTOs

// CreateFlowRequest — запрос на создание flow.
type CreateFlowRequest struct {
	Name      string         `json:"name"`
	DepositID string         `json:"deposit_id"`
	UserID    string         `json:"user_id"`
	Payload   map[string]any `json:"payload"`
}

// FlowResponse — ответ с flow без задач (сразу после создания).
type FlowResponse struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	DepositID string         `json:"deposit_id"`
	UserID    string         `json:"user_id,omitempty"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
func FlowFromDomain(f *domain.Flow) FlowResponse {
	return FlowResponse{
		ID:        f.ID,
		Name:      f.Name,
		DepositID: f.DepositID,
		UserID:    f.UserID,
		Payload:   f.Payload,
		CreatedAt: f.CreatedAt,
	}
}

// Task DTOs

// TaskStatusResponse — статус отдельной задачи.
type TaskStatusResponse struct {
	ID      uuid.UUID     `json:"id"`
	Name    string        `json:"name"`
	Status  domain.Status `json:"status"`
	Message string        `json:"message,omitempty"`
}

// TaskStatusFromDomain конвертирует domain.Task в TaskStatusResponse.
func TaskStatusFromDomain(t *domain.Task) TaskStatusResponse {
	return TaskStatusResponse{
		ID:      t.ID,
		Name:    t.Name,
		Status:  t.Status,
		Message: t.Message,
	}
}

// Deposit DTOs

// DepositStatusResponse — агрегированные статусы задач депозита
// по именам задач.
type DepositStatusResponse struct {
	DepositID string                   `json:"deposit_id"`
	Tasks     map[string]domain.Status `json:"tasks"`
}
