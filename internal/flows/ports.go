package flows

import (
	"context"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/engine"
)

// FlowStore — хранилище Flow-записей. Реализуется repo.FlowRepo;
// отсутствие записи сигнализируется repo.ErrNotFound.
type FlowStore interface {
	Create(ctx context.Context, flow *domain.Flow) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Flow, error)

	// GetByDeposit возвращает последний не удалённый flow депозита.
	GetByDeposit(ctx context.Context, depositID string) (*domain.Flow, error)

	// ListByDeposit возвращает все flows депозита, новые первыми,
	// включая удалённые.
	ListByDeposit(ctx context.Context, depositID string) ([]domain.Flow, error)

	Update(ctx context.Context, flow *domain.Flow) error

	// Delete помечает flow удалённым. Записи не стираются.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskStore — хранилище Task-записей. Реализуется repo.TaskRepo;
// отсутствие записи сигнализируется repo.ErrNotFound.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListByFlow(ctx context.Context, flowID uuid.UUID) ([]domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
}

// ExecutionQueue — адаптер очереди выполнения.
//
// Submit публикует canvas целиком; id отправки — canvas.ID.
// Записи задач должны быть сохранены до вызова Submit: callback
// завершения может прийти раньше, чем вернётся вызывающий.
type ExecutionQueue interface {
	Submit(ctx context.Context, canvas *engine.Canvas) error

	// Forget сбрасывает состояние отправки у исполнителя.
	Forget(ctx context.Context, executionID uuid.UUID) error
}

// TaskRuntime — управление отдельными задачами у исполнителя.
// Реализуется worker.Wrapper.
type TaskRuntime interface {
	// StopTask отменяет задачу, если она ещё PENDING: фиксирует
	// REVOKED на Task-записи и публикует сигнал task.revoked.
	// Best-effort: уже начатая задача может завершиться после
	// возврата.
	StopTask(ctx context.Context, taskID uuid.UUID) error
}

// ObjectProvisioner подготавливает объектное хранилище для flow.
// Реализуется storage.Store поверх MinIO.
type ObjectProvisioner interface {
	EnsureBucket(ctx context.Context, bucket string) error

	// NewVersion резервирует идентификатор версии объекта
	// bucket/key, под которым задачи будут писать результаты.
	NewVersion(ctx context.Context, bucket, key string) (string, error)
}

// DepositNotifier уведомляет владеющий депозит об изменении flow.
type DepositNotifier interface {
	FlowUpdated(ctx context.Context, depositID string, view domain.FlowView) error
}
