package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/repo"
)

// Параметры ожидания записи при получении задачи. Сообщение task.ready
// может опередить видимость commit'а, сохранившего запись.
const (
	pickupRetryAttempts = 5
	pickupRetryDelay    = 200 * time.Millisecond
)

// handleTaskReady обрабатывает сигнатуру из очереди tasks.ready.
func (w *Worker) handleTaskReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received task.ready event",
		"task_id", payload.Signature.TaskID,
		"name", payload.Signature.Name,
		"flow_id", payload.FlowID,
	)

	if err := w.processSignature(ctx, payload); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskNotPending) {
			w.logger.Debug("task not processed",
				"task_id", payload.Signature.TaskID,
				"reason", err,
			)
			return nil
		}
		w.logger.Error("failed to process task",
			"task_id", payload.Signature.TaskID,
			"error", err,
		)
		return err
	}

	return nil
}

// processSignature выполняет одну сигнатуру.
//
// Задача выполняется только из статуса PENDING: отозванные задачи и
// задачи, вытесненные перезапуском, пропускаются. Перед выполнением
// запись переводится в STARTED, чтобы агрегированный статус flow
// отражал работу в полёте.
func (w *Worker) processSignature(ctx context.Context, payload mq.TaskReadyPayload) error {
	taskID := EffectiveTaskID(payload.Signature)

	task, err := w.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status != domain.StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrTaskNotPending, taskID, task.Status)
	}

	task.MarkStarted()
	if err := w.store.Update(ctx, task); err != nil {
		return fmt.Errorf("update task to started: %w", err)
	}

	w.logger.Info("task started",
		"task_id", taskID,
		"flow_id", task.FlowID,
		"name", task.Name,
	)

	handler, err := w.registry.Get(payload.Signature.Name)
	if err != nil {
		// Нерешаемое имя — терминальный FAILURE, а не retry
		if commitErr := w.wrapper.CommitStatus(ctx, taskID, domain.StatusFailure, err.Error()); commitErr != nil {
			return commitErr
		}
		return nil
	}

	w.wrapper.Execute(ctx, handler, payload.Signature, payload.ExecutionID)
	return nil
}

// loadTask читает Task-запись, дожидаясь её видимости.
func (w *Worker) loadTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	var lastErr error

	for attempt := 0; attempt < pickupRetryAttempts; attempt++ {
		task, err := w.store.Get(ctx, taskID)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("get task: %w", err)
		}

		lastErr = fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pickupRetryDelay):
		}
	}

	return nil, lastErr
}
