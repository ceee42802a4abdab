package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/engine"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/repo"
)

// handleFlowSubmitted обрабатывает canvas из очереди flows.submitted.
func (d *Dispatcher) handleFlowSubmitted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.FlowSubmittedPayload](&delivery.Message)
	if err != nil {
		d.logger.Error("failed to parse flow.submitted payload", "error", err)
		return err
	}
	if payload.Canvas == nil || len(payload.Canvas.Units) == 0 {
		d.logger.Error("flow.submitted without canvas", "message_id", delivery.Message.ID)
		return nil
	}

	if err := d.processSubmitted(ctx, payload.Canvas); err != nil {
		if errors.Is(err, ErrExecAlreadyActive) {
			d.logger.Debug("execution already active, skipping",
				"execution_id", payload.Canvas.ID,
			)
			return nil
		}
		d.logger.Error("failed to process submitted canvas",
			"execution_id", payload.Canvas.ID,
			"error", err,
		)
		return err
	}

	return nil
}

// handleTaskCompleted обрабатывает событие о завершённой задаче.
func (d *Dispatcher) handleTaskCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskCompletedPayload](&delivery.Message)
	if err != nil {
		d.logger.Error("failed to parse task.completed payload", "error", err)
		return err
	}

	d.logger.Debug("received task.completed event",
		"task_id", payload.TaskID,
		"flow_id", payload.FlowID,
		"execution_id", payload.ExecutionID,
		"status", payload.Status,
	)

	if err := d.processCompleted(ctx, payload); err != nil {
		d.logger.Error("failed to process task completion",
			"task_id", payload.TaskID,
			"execution_id", payload.ExecutionID,
			"error", err,
		)
		return err
	}

	return nil
}

// handleControl обрабатывает контрольные сигналы.
func (d *Dispatcher) handleControl(ctx context.Context, delivery *mq.Delivery) error {
	switch delivery.Message.Type {
	case mq.MessageTypeTaskRevoked:
		payload, err := mq.ParsePayload[mq.TaskRevokedPayload](&delivery.Message)
		if err != nil {
			d.logger.Error("failed to parse task.revoked payload", "error", err)
			return err
		}
		d.processRevoked(ctx, payload.TaskID)

	case mq.MessageTypeExecForgotten:
		payload, err := mq.ParsePayload[mq.ExecForgottenPayload](&delivery.Message)
		if err != nil {
			d.logger.Error("failed to parse execution.forgotten payload", "error", err)
			return err
		}
		d.removeActive(payload.ExecutionID)
		d.logger.Info("execution forgotten", "execution_id", payload.ExecutionID)

	default:
		d.logger.Warn("unknown control message", "type", delivery.Message.Type)
	}

	return nil
}

// processSubmitted начинает выполнение canvas: регистрирует состояние
// и раздаёт первое звено.
func (d *Dispatcher) processSubmitted(ctx context.Context, canvas *engine.Canvas) error {
	state := NewExecState(canvas)

	if err := d.addActive(state); err != nil {
		return err
	}

	d.logger.Info("execution started",
		"execution_id", canvas.ID,
		"flow_id", canvas.FlowID,
		"units", len(canvas.Units),
	)

	unit, ok := state.CurrentUnit()
	if !ok {
		d.removeActive(canvas.ID)
		return ErrExecFinished
	}

	d.dispatchUnit(ctx, state, unit)
	return nil
}

// processCompleted обрабатывает завершение задачи и продвигает цепочку.
func (d *Dispatcher) processCompleted(ctx context.Context, payload mq.TaskCompletedPayload) error {
	state := d.getActive(payload.ExecutionID)

	// Если отправка не в памяти — восстанавливаем из Task-записей
	// (после рестарта диспетчера)
	if state == nil {
		var err error
		state, err = d.restoreState(ctx, payload.ExecutionID, payload.FlowID)
		if err != nil {
			return fmt.Errorf("restore execution state: %w", err)
		}
		if state == nil {
			d.logger.Debug("execution not active and cannot restore",
				"execution_id", payload.ExecutionID,
			)
			return nil
		}
	}

	status := domain.Status(payload.Status)
	if !status.IsTerminal() {
		d.logger.Warn("task.completed with non-terminal status",
			"task_id", payload.TaskID,
			"status", payload.Status,
		)
		return nil
	}

	d.applyCompletion(ctx, state, payload.TaskID, status)
	return nil
}

// processRevoked применяет сигнал отмены к активным отправкам.
// Принятая гонка: если задача успела завершиться, её терминальный
// статус уже зафиксирован и отмена ничего не меняет.
func (d *Dispatcher) processRevoked(ctx context.Context, taskID uuid.UUID) {
	for _, state := range d.activeStates() {
		if !state.Contains(taskID) {
			continue
		}
		d.logger.Info("task revoked",
			"task_id", taskID,
			"execution_id", state.ExecutionID(),
		)
		d.applyCompletion(ctx, state, taskID, domain.StatusRevoked)
	}
}

// applyCompletion записывает терминальный статус задачи и продвигает
// цепочку: следующее звено раздаётся, только когда все задачи текущего
// звена завершились успешно.
func (d *Dispatcher) applyCompletion(ctx context.Context, state *ExecState, taskID uuid.UUID, status domain.Status) {
	if !state.Contains(taskID) {
		d.logger.Debug("completion for foreign task",
			"task_id", taskID,
			"execution_id", state.ExecutionID(),
		)
		return
	}

	next, progress := state.CompleteTask(taskID, status)
	switch progress {
	case ProgressDispatch:
		d.dispatchUnit(ctx, state, next)

	case ProgressFinished:
		d.removeActive(state.ExecutionID())
		d.logger.Info("execution completed",
			"execution_id", state.ExecutionID(),
			"flow_id", state.FlowID(),
			"stats", state.Stats(),
		)

	case ProgressHalted:
		d.removeActive(state.ExecutionID())
		d.logger.Warn("execution halted",
			"execution_id", state.ExecutionID(),
			"flow_id", state.FlowID(),
			"stats", state.Stats(),
		)
	}
}

// dispatchUnit раздаёт сигнатуры звена воркерам.
func (d *Dispatcher) dispatchUnit(ctx context.Context, state *ExecState, unit engine.Unit) {
	for _, sig := range unit.Signatures {
		d.publishReady(ctx, state, sig)
	}
	state.MarkDispatched()

	d.logger.Debug("unit dispatched",
		"execution_id", state.ExecutionID(),
		"flow_id", state.FlowID(),
		"tasks", len(unit.Signatures),
		"group", unit.Group,
	)
}

// publishReady публикует одну сигнатуру в tasks.ready.
func (d *Dispatcher) publishReady(ctx context.Context, state *ExecState, sig engine.Signature) {
	err := d.publisher.PublishTaskReady(ctx, mq.TaskReadyPayload{
		Signature:   sig,
		FlowID:      state.FlowID(),
		ExecutionID: state.ExecutionID(),
	})
	if err != nil {
		// Сообщение потеряно — sweep раздаст задачу повторно
		d.logger.Warn("failed to publish task.ready",
			"task_id", sig.TaskID,
			"execution_id", state.ExecutionID(),
			"error", err,
		)
	}
}

// restoreState восстанавливает состояние отправки из Task-записей.
// Используется, когда task.completed приходит для отправки, которой
// нет в памяти (после рестарта Dispatcher).
func (d *Dispatcher) restoreState(ctx context.Context, executionID, flowID uuid.UUID) (*ExecState, error) {
	if flowID == uuid.Nil {
		return nil, nil
	}

	tasks, err := d.taskStore.ListByFlow(ctx, flowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list flow tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	canvas, err := engine.Rebuild(flowID, tasks)
	if err != nil {
		return nil, fmt.Errorf("rebuild canvas: %w", err)
	}
	// Восстановленное состояние отвечает на события исходной отправки
	canvas.ID = executionID

	state := NewExecState(canvas)
	state.RestoreProgress(tasks)

	if state.IsFinished() {
		return nil, nil
	}

	if err := d.addActive(state); err != nil {
		if errors.Is(err, ErrExecAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return d.getActive(executionID), nil
		}
		return nil, err
	}

	d.logger.Info("execution state restored",
		"execution_id", executionID,
		"flow_id", flowID,
		"stats", state.Stats(),
	)

	return state, nil
}
