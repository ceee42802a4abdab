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

// FlowRepo — репозиторий для работы с flows.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	payloadJSON, err := json.Marshal(flow.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}
	flow.UpdatedAt = now

	query := `
		INSERT INTO flows (id, name, deposit_id, user_id, payload, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		flow.DepositID,
		flow.UserID,
		payloadJSON,
		flow.Deleted,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// Get возвращает flow по ID.
func (r *FlowRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	query := `
		SELECT id, name, deposit_id, user_id, payload, deleted, created_at, updated_at
		FROM flows
		WHERE id = $1
	`
	return r.scanFlow(r.pool.QueryRow(ctx, query, id))
}

// GetByDeposit возвращает последний не удалённый flow депозита.
func (r *FlowRepo) GetByDeposit(ctx context.Context, depositID string) (*domain.Flow, error) {
	query := `
		SELECT id, name, deposit_id, user_id, payload, deleted, created_at, updated_at
		FROM flows
		WHERE deposit_id = $1 AND NOT deleted
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanFlow(r.pool.QueryRow(ctx, query, depositID))
}

// ListByDeposit возвращает все flows депозита, новые первыми.
func (r *FlowRepo) ListByDeposit(ctx context.Context, depositID string) ([]domain.Flow, error) {
	query := `
		SELECT id, name, deposit_id, user_id, payload, deleted, created_at, updated_at
		FROM flows
		WHERE deposit_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, depositID)
	if err != nil {
		return nil, fmt.Errorf("list flows by deposit: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		flow, err := r.scanFlowFromRows(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// Update обновляет payload и флаг удаления flow.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	payloadJSON, err := json.Marshal(flow.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	flow.UpdatedAt = time.Now()

	query := `
		UPDATE flows
		SET payload = $2, deleted = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		flow.ID,
		payloadJSON,
		flow.Deleted,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete помечает flow удалённым. Запись не стирается.
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE flows
		SET deleted = true, updated_at = $2
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("soft delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDeletedBefore возвращает flows, помеченные удалёнными до cutoff.
// Используется maintenance-сервисом для физической чистки.
func (r *FlowRepo) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Flow, error) {
	query := `
		SELECT id, name, deposit_id, user_id, payload, deleted, created_at, updated_at
		FROM flows
		WHERE deleted AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list deleted flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		flow, err := r.scanFlowFromRows(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// Purge физически удаляет flow. Только для maintenance после retention.
func (r *FlowRepo) Purge(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("purge flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *FlowRepo) scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	var payloadJSON []byte

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.DepositID,
		&flow.UserID,
		&payloadJSON,
		&flow.Deleted,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &flow.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &flow, nil
}

func (r *FlowRepo) scanFlowFromRows(rows pgx.Rows) (*domain.Flow, error) {
	return r.scanFlow(rows)
}
