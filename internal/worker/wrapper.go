package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/engine"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/repo"
	"github.com/jrcastro2/cds-videos/internal/tasks"
	"github.com/jrcastro2/cds-videos/internal/telemetry"
)

// Параметры ожидания видимости Task-записи.
//
// Запись сохраняется до отправки canvas, но commit-транзакция может
// стать видимой чуть позже, чем воркер получит сообщение. Commit
// статуса поэтому повторяет чтение с задержкой, а не падает сразу.
const (
	commitRetryAttempts = 10
	commitRetryDelay    = 200 * time.Millisecond
)

// TaskStore — минимальный контракт хранилища Task-записей для воркера.
// Реализуется repo.TaskRepo; отсутствие записи — repo.ErrNotFound.
type TaskStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
}

// Wrapper оборачивает выполнение задачи: фиксирует терминальный статус
// на Task-записи ровно один раз за попытку и только после этого
// делегирует штатную обработку завершения (логирование, публикацию
// task.completed). Сбой делегата не отменяет уже выполненный commit.
type Wrapper struct {
	store     TaskStore
	publisher *mq.Publisher
	logger    *slog.Logger
}

// NewWrapper создаёт Wrapper. publisher может быть nil — тогда
// завершения не публикуются (режим тестов).
func NewWrapper(store TaskStore, publisher *mq.Publisher, logger *slog.Logger) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wrapper{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// EffectiveTaskID возвращает действующий id задачи сигнатуры.
//
// Id, явно переданный при отправке (kwargs["task_id"]), имеет приоритет
// над id, назначенным бэкендом: id бэкенда — артефакт отправки, а не
// объявленной единицы работы. При перезапуске задача переотправляется
// со старым id именно через kwargs.
func EffectiveTaskID(sig engine.Signature) uuid.UUID {
	if raw, ok := sig.Kwargs["task_id"].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return sig.TaskID
}

// Execute выполняет задачу через handler и возвращает её терминальный
// статус.
//
// Порядок строгий: сначала commit статуса на Task-записи, затем
// делегирование (публикация task.completed). Делегат вызывается даже
// при сбое commit — продвижение цепочки важнее диагностической записи,
// а сбой commit логируется.
func (w *Wrapper) Execute(ctx context.Context, handler tasks.Handler, sig engine.Signature, executionID uuid.UUID) domain.Status {
	taskID := EffectiveTaskID(sig)

	started := time.Now()
	message, execErr := handler.Execute(ctx, sig.Kwargs)
	telemetry.TaskDuration.WithLabelValues(sig.Name).Observe(time.Since(started).Seconds())

	status := domain.StatusSuccess
	if execErr != nil {
		status = domain.StatusFailure
		message = execErr.Error()
	}
	telemetry.TaskExecutions.WithLabelValues(sig.Name, string(status)).Inc()

	if err := w.CommitStatus(ctx, taskID, status, message); err != nil {
		w.logger.Error("failed to commit task status",
			"task_id", taskID,
			"status", status,
			"error", err,
		)
	}

	w.delegate(ctx, taskID, sig, executionID, status, message)
	return status
}

// CommitStatus записывает терминальный статус на Task-запись.
//
// Если запись ещё не видна (гонка порядка commit'ов при отправке),
// чтение повторяется с задержкой до commitRetryAttempts раз.
func (w *Wrapper) CommitStatus(ctx context.Context, taskID uuid.UUID, status domain.Status, message string) error {
	var lastErr error

	for attempt := 0; attempt < commitRetryAttempts; attempt++ {
		task, err := w.store.Get(ctx, taskID)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("get task: %w", err)
			}
			lastErr = fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(commitRetryDelay):
			}
			continue
		}

		switch status {
		case domain.StatusStarted:
			task.MarkStarted()
		case domain.StatusSuccess:
			task.MarkSuccess(message)
		case domain.StatusFailure:
			task.MarkFailure(message)
		case domain.StatusRevoked:
			task.MarkRevoked()
		default:
			return fmt.Errorf("commit of status %s is not supported", status)
		}

		if err := w.store.Update(ctx, task); err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		return nil
	}

	return lastErr
}

// delegate — штатная обработка завершения после commit статуса.
func (w *Wrapper) delegate(ctx context.Context, taskID uuid.UUID, sig engine.Signature, executionID uuid.UUID, status domain.Status, message string) {
	logger := w.logger.With(
		"task_id", taskID,
		"name", sig.Name,
		"status", status,
	)
	if status == domain.StatusSuccess {
		logger.Info("task completed")
	} else {
		logger.Warn("task failed", "message", message)
	}

	if w.publisher == nil {
		return
	}

	payload := mq.TaskCompletedPayload{
		TaskID:      taskID,
		FlowID:      flowIDFromKwargs(sig.Kwargs),
		ExecutionID: executionID,
		Status:      string(status),
		Message:     message,
	}
	if err := w.publisher.PublishTaskCompleted(ctx, payload); err != nil {
		// Статус уже в БД; диспетчер подхватит задачу через sweep
		logger.Warn("failed to publish task.completed", "error", err)
	}
}

// GetStatus возвращает статус и сообщение задачи.
func (w *Wrapper) GetStatus(ctx context.Context, taskID uuid.UUID) (domain.Status, string, error) {
	task, err := w.store.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return "", "", fmt.Errorf("get task: %w", err)
	}
	return task.Status, task.Message, nil
}

// StopTask отменяет задачу, если она ещё PENDING. Отмена завершённой
// работы — no-op, а не ошибка. Неизвестный id — ErrTaskNotFound.
func (w *Wrapper) StopTask(ctx context.Context, taskID uuid.UUID) error {
	task, err := w.store.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	if task.Status != domain.StatusPending {
		return nil
	}

	task.MarkRevoked()
	if err := w.store.Update(ctx, task); err != nil {
		return fmt.Errorf("revoke task %s: %w", taskID, err)
	}

	if w.publisher != nil {
		if err := w.publisher.PublishTaskRevoked(ctx, taskID); err != nil {
			w.logger.Warn("failed to publish task.revoked",
				"task_id", taskID,
				"error", err,
			)
		}
	}
	return nil
}

// flowIDFromKwargs достаёт flow_id из kwargs сигнатуры.
func flowIDFromKwargs(kwargs map[string]any) uuid.UUID {
	if raw, ok := kwargs["flow_id"].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.Nil
}
