package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/repo"
)

// CreateFlow создаёт новый flow для депозита.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	flow, err := h.flows.Create(r.Context(), req.Name, req.DepositID, req.UserID, req.Payload)
	if HandleFlowError(w, h.logger, err) {
		return
	}

	Created(w, FlowFromDomain(flow))
}

// GetFlow возвращает сериализованное представление flow
// вместе с задачами и агрегированным статусом.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	view, err := h.flows.View(r.Context(), id)
	if HandleFlowError(w, h.logger, err) {
		return
	}

	Success(w, view)
}

// RunFlow запускает выполнение flow: проверяет payload, готовит
// объектное хранилище и отправляет canvas в очередь.
// POST /api/v1/flows/{id}/run
func (h *Handler) RunFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	flow, err := h.flows.Run(r.Context(), id)
	if HandleFlowError(w, h.logger, err) {
		return
	}

	Success(w, FlowFromDomain(flow))
}

// StopFlow отменяет ещё не начатые задачи flow.
// POST /api/v1/flows/{id}/stop
func (h *Handler) StopFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if err := h.flows.Stop(r.Context(), id); HandleFlowError(w, h.logger, err) {
		return
	}

	NoContent(w)
}

// DeleteFlow чистит результаты задач и помечает flow удалённым.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if err := h.flows.Delete(r.Context(), id); HandleFlowError(w, h.logger, err) {
		return
	}

	NoContent(w)
}

// GetTaskStatus возвращает статус и диагностику отдельной задачи.
// GET /api/v1/flows/{id}/tasks/{task_id}
func (h *Handler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	flowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}
	taskID, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.tasks.Get(r.Context(), taskID)
	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, "task not found")
		return
	}
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if task.FlowID != flowID {
		NotFound(w, "task not found")
		return
	}

	Success(w, TaskStatusFromDomain(task))
}

// RestartTask переотправляет терминальную задачу с тем же id,
// вливая текущий payload flow поверх сохранённого снимка.
// POST /api/v1/flows/{id}/tasks/{task_id}/restart
func (h *Handler) RestartTask(w http.ResponseWriter, r *http.Request) {
	flowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}
	taskID, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	if err := h.flows.RestartTask(r.Context(), flowID, taskID); HandleFlowError(w, h.logger, err) {
		return
	}

	NoContent(w)
}

// GetDepositFlow возвращает последний не удалённый flow депозита.
// GET /api/v1/deposits/{deposit_id}/flow
func (h *Handler) GetDepositFlow(w http.ResponseWriter, r *http.Request) {
	depositID := r.PathValue("deposit_id")
	if depositID == "" {
		BadRequest(w, "invalid deposit id")
		return
	}

	flow, err := h.flows.GetForDeposit(r.Context(), depositID)
	if HandleFlowError(w, h.logger, err) {
		return
	}

	Success(w, FlowFromDomain(flow))
}

// GetDepositStatus возвращает статусы задач flows депозита,
// сгруппированные по именам задач.
// GET /api/v1/deposits/{deposit_id}/status
func (h *Handler) GetDepositStatus(w http.ResponseWriter, r *http.Request) {
	depositID := r.PathValue("deposit_id")
	if depositID == "" {
		BadRequest(w, "invalid deposit id")
		return
	}

	statuses, err := h.flows.DepositStatus(r.Context(), depositID)
	if HandleFlowError(w, h.logger, err) {
		return
	}

	Success(w, DepositStatusResponse{
		DepositID: depositID,
		Tasks:     statuses,
	})
}
