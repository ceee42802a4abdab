package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jrcastro2/cds-videos/internal/domain"
)

// Значения по умолчанию для интервалов обслуживания.
const (
	defaultRetention    = 7 * 24 * time.Hour
	defaultStaleAfter   = time.Hour
	defaultBatchSize    = 100
	defaultPurgeSpec    = "@every 1h"
	defaultStaleSpec    = "@every 10m"
	staleFailureMessage = "execution lost: task stuck in STARTED"
)

// FlowStore — доступ к flows, нужный обслуживанию.
// Реализуется repo.FlowRepo.
type FlowStore interface {
	ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Flow, error)
	Purge(ctx context.Context, id uuid.UUID) error
}

// TaskStore — доступ к задачам, нужный обслуживанию.
// Реализуется repo.TaskRepo.
type TaskStore interface {
	ListStale(ctx context.Context, status domain.Status, olderThan time.Duration, limit int) ([]domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	DeleteByFlow(ctx context.Context, flowID uuid.UUID) (int64, error)
}

// Maintenance — фоновое обслуживание хранилища flow.
//
// Два периодических прохода:
//   - purge: физическое удаление flow, помеченных удалёнными дольше
//     retention, вместе с их задачами;
//   - stale: задачи, зависшие в STARTED дольше staleAfter (воркер
//     умер посреди выполнения), переводятся в FAILURE с диагностикой,
//     чтобы flow стал терминальным и перезапускаемым.
//
// Зависшие PENDING задачи обслуживание не трогает: их переотправляет
// sweep диспетчера, у которого есть знание о текущем юните цепочки.
type Maintenance struct {
	flowStore FlowStore
	taskStore TaskStore
	logger    *slog.Logger

	retention  time.Duration
	staleAfter time.Duration
	batchSize  int

	purgeSpec string
	staleSpec string

	cron *cron.Cron
}

// Config — конфигурация Maintenance.
type Config struct {
	FlowStore FlowStore
	TaskStore TaskStore
	Logger    *slog.Logger

	Retention  time.Duration // хранение удалённых flow (default: 7d)
	StaleAfter time.Duration // порог зависания STARTED (default: 1h)
	BatchSize  int           // записей за один проход (default: 100)

	PurgeSchedule string // cron-спецификация purge-прохода (default: @every 1h)
	StaleSchedule string // cron-спецификация stale-прохода (default: @every 10m)
}

// New создаёт Maintenance.
func New(cfg Config) *Maintenance {
	m := &Maintenance{
		flowStore:  cfg.FlowStore,
		taskStore:  cfg.TaskStore,
		logger:     cfg.Logger,
		retention:  cfg.Retention,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		purgeSpec:  cfg.PurgeSchedule,
		staleSpec:  cfg.StaleSchedule,
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.retention <= 0 {
		m.retention = defaultRetention
	}
	if m.staleAfter <= 0 {
		m.staleAfter = defaultStaleAfter
	}
	if m.batchSize <= 0 {
		m.batchSize = defaultBatchSize
	}
	if m.purgeSpec == "" {
		m.purgeSpec = defaultPurgeSpec
	}
	if m.staleSpec == "" {
		m.staleSpec = defaultStaleSpec
	}

	return m
}

// Start регистрирует проходы в cron и запускает их по расписанию.
func (m *Maintenance) Start(ctx context.Context) error {
	m.cron = cron.New()

	_, err := m.cron.AddFunc(m.purgeSpec, func() {
		if err := m.PurgeTick(ctx); err != nil {
			m.logger.Error("purge tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule purge tick: %w", err)
	}

	_, err = m.cron.AddFunc(m.staleSpec, func() {
		if err := m.StaleTick(ctx); err != nil {
			m.logger.Error("stale tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule stale tick: %w", err)
	}

	m.cron.Start()
	m.logger.Info("maintenance started",
		"purge_schedule", m.purgeSpec,
		"stale_schedule", m.staleSpec,
		"retention", m.retention,
		"stale_after", m.staleAfter,
	)
	return nil
}

// Stop останавливает cron и дожидается завершения текущих проходов.
func (m *Maintenance) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.logger.Info("maintenance stopped")
}

// PurgeTick физически удаляет flow, помеченные удалёнными дольше
// retention, вместе с их задачами.
//
// Ошибка одного flow не блокирует остальные.
func (m *Maintenance) PurgeTick(ctx context.Context) error {
	cutoff := time.Now().Add(-m.retention)

	flows, err := m.flowStore.ListDeletedBefore(ctx, cutoff, m.batchSize)
	if err != nil {
		return fmt.Errorf("list deleted flows: %w", err)
	}
	if len(flows) == 0 {
		return nil
	}

	var purged int
	for i := range flows {
		flow := &flows[i]

		removed, err := m.taskStore.DeleteByFlow(ctx, flow.ID)
		if err != nil {
			m.logger.Error("failed to delete flow tasks",
				"flow_id", flow.ID,
				"error", err,
			)
			continue
		}

		if err := m.flowStore.Purge(ctx, flow.ID); err != nil {
			m.logger.Error("failed to purge flow",
				"flow_id", flow.ID,
				"error", err,
			)
			continue
		}

		m.logger.Info("purged flow",
			"flow_id", flow.ID,
			"deposit_id", flow.DepositID,
			"tasks_removed", removed,
		)
		purged++
	}

	m.logger.Info("purge tick completed",
		"candidates", len(flows),
		"purged", purged,
	)
	return nil
}

// StaleTick помечает задачи, зависшие в STARTED дольше staleAfter,
// как FAILURE. Flow становится терминальным, задачу можно перезапустить.
func (m *Maintenance) StaleTick(ctx context.Context) error {
	tasks, err := m.taskStore.ListStale(ctx, domain.StatusStarted, m.staleAfter, m.batchSize)
	if err != nil {
		return fmt.Errorf("list stale tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	var failed int
	for i := range tasks {
		task := &tasks[i]

		task.MarkFailure(staleFailureMessage)
		if err := m.taskStore.Update(ctx, task); err != nil {
			m.logger.Error("failed to fail stale task",
				"task_id", task.ID,
				"flow_id", task.FlowID,
				"error", err,
			)
			continue
		}

		m.logger.Warn("stale task marked failed",
			"task_id", task.ID,
			"flow_id", task.FlowID,
			"task_name", task.Name,
		)
		failed++
	}

	m.logger.Info("stale tick completed",
		"candidates", len(tasks),
		"failed", failed,
	)
	return nil
}
