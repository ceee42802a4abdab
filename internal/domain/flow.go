package domain

import (
	"time"

	"github.com/google/uuid"
)

// Flow — один экземпляр выполнения pipeline, привязанный к депозиту.
//
// Flow создаётся фабрикой (атомарный insert), собирается ровно один раз
// (появляются Task-записи), запускается, и в конце концов помечается
// удалённым (soft delete). Повторная сборка уже собранного flow — ошибка.
type Flow struct {
	// ID — уникальный идентификатор flow. Назначается при создании,
	// неизменяем.
	ID uuid.UUID `json:"id"`

	// Name — имя шаблона pipeline (например, "AVCWorkflow").
	Name string `json:"name"`

	// DepositID — идентификатор владеющего депозита.
	// Внешняя ссылка, депозит этим модулем не управляется.
	DepositID string `json:"deposit_id"`

	// UserID — кто создал flow.
	UserID string `json:"user_id,omitempty"`

	// Payload — параметры flow. Мутабелен; вливается в kwargs каждой
	// задачи в момент сборки. Задача, уже получившая свой снимок,
	// поздних изменений payload не видит.
	Payload map[string]any `json:"payload"`

	// Deleted — флаг мягкого удаления. Записи из БД физически
	// не удаляются.
	Deleted bool `json:"deleted"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// Status агрегирует статусы задач flow в один статус.
// Статус flow — производная величина, в БД не хранится.
func (f *Flow) Status(tasks []Task) Status {
	statuses := make([]Status, len(tasks))
	for i := range tasks {
		statuses[i] = tasks[i].Status
	}
	return ComputeStatus(statuses)
}

// FlowView — сериализованное представление flow для API.
type FlowView struct {
	ID      uuid.UUID      `json:"id"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
	Tasks   []TaskView     `json:"tasks"`
	Status  Status         `json:"status"`
}

// TaskView — сериализованное представление задачи внутри FlowView.
type TaskView struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Status   Status      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Previous []uuid.UUID `json:"previous"`
}

// NewFlowView строит FlowView из flow и его задач.
func NewFlowView(flow *Flow, tasks []Task) FlowView {
	views := make([]TaskView, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		views[i] = TaskView{
			ID:       t.ID,
			Name:     t.Name,
			Status:   t.Status,
			Message:  t.Message,
			Previous: t.Previous,
		}
	}

	return FlowView{
		ID:      flow.ID,
		Name:    flow.Name,
		Payload: flow.Payload,
		Tasks:   views,
		Status:  flow.Status(tasks),
	}
}
