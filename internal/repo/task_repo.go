package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrcastro2/cds-videos/internal/domain"
)

// TaskRepo — репозиторий для работы с задачами flow.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новую задачу.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	previousJSON, err := json.Marshal(task.Previous)
	if err != nil {
		return fmt.Errorf("marshal previous: %w", err)
	}
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	query := `
		INSERT INTO tasks (id, flow_id, name, previous, payload, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.FlowID,
		task.Name,
		previousJSON,
		payloadJSON,
		task.Status,
		task.Message,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Get возвращает задачу по ID.
func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, flow_id, name, previous, payload, status, message, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`
	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListByFlow возвращает задачи flow в порядке создания.
// Порядок создания совпадает с порядком сборки, поэтому по нему
// восстанавливается исходная цепочка. created_at хранится с точностью
// до микросекунды — id добивает порядок до стабильного при совпадении
// временных меток.
func (r *TaskRepo) ListByFlow(ctx context.Context, flowID uuid.UUID) ([]domain.Task, error) {
	query := `
		SELECT id, flow_id, name, previous, payload, status, message, created_at, updated_at
		FROM tasks
		WHERE flow_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by flow: %w", err)
	}
	defer rows.Close()

	return r.collectTasks(rows)
}

// Update обновляет статус, диагностику и payload задачи.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task.UpdatedAt = time.Now()

	query := `
		UPDATE tasks
		SET status = $2, message = $3, payload = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Status,
		task.Message,
		payloadJSON,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStale возвращает задачи в заданном статусе, не обновлявшиеся
// дольше olderThan. Используется maintenance-сервисом для инспекции
// зависших задач.
func (r *TaskRepo) ListStale(ctx context.Context, status domain.Status, olderThan time.Duration, limit int) ([]domain.Task, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `
		SELECT id, flow_id, name, previous, payload, status, message, created_at, updated_at
		FROM tasks
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, status, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale tasks: %w", err)
	}
	defer rows.Close()

	return r.collectTasks(rows)
}

// DeleteByFlow физически удаляет все задачи flow.
// Только для maintenance при чистке удалённых flow.
func (r *TaskRepo) DeleteByFlow(ctx context.Context, flowID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE flow_id = $1`, flowID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks by flow: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

func (r *TaskRepo) scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var previousJSON, payloadJSON []byte

	err := row.Scan(
		&task.ID,
		&task.FlowID,
		&task.Name,
		&previousJSON,
		&payloadJSON,
		&task.Status,
		&task.Message,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if previousJSON != nil {
		if err := json.Unmarshal(previousJSON, &task.Previous); err != nil {
			return nil, fmt.Errorf("unmarshal previous: %w", err)
		}
	}
	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &task, nil
}

func (r *TaskRepo) collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
