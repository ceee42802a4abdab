package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/telemetry"
)

// Default configuration values.
const (
	defaultSweepInterval = 30 * time.Second
	defaultPrefetch      = 10
)

// TaskStore — контракт хранилища Task-записей для диспетчера.
// Реализуется repo.TaskRepo.
type TaskStore interface {
	ListByFlow(ctx context.Context, flowID uuid.UUID) ([]domain.Task, error)
}

// StatusReader — статусы отдельных задач у исполнителя.
// Реализуется worker.Wrapper.
type StatusReader interface {
	GetStatus(ctx context.Context, taskID uuid.UUID) (domain.Status, string, error)
}

// Publisher — контракт публикации для диспетчера.
// Реализуется mq.Publisher.
type Publisher interface {
	PublishTaskReady(ctx context.Context, payload mq.TaskReadyPayload) error
}

// Dispatcher продвигает выполнение отправленных canvas.
//
// Dispatcher — координирующий компонент системы, который:
//   - Получает canvas из очереди flows.submitted (event-driven)
//   - Раздаёт сигнатуры текущего звена воркерам
//   - Отслеживает завершение задач и продвигает цепочку
//   - Останавливает цепочку при FAILURE/REVOKED
//   - Периодически сверяет зависшие звенья с БД (sweep fallback)
type Dispatcher struct {
	taskStore TaskStore
	statuses  StatusReader
	publisher Publisher

	// MQ
	conn *mq.Connection

	// Active executions — отправки в процессе (executionID → state)
	active map[uuid.UUID]*ExecState
	mu     sync.RWMutex

	// Consumers
	flowConsumer    *mq.Consumer
	taskConsumer    *mq.Consumer
	controlConsumer *mq.Consumer

	// Configuration
	sweepInterval time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Dispatcher.
type Config struct {
	// TaskStore — хранилище Task-записей.
	TaskStore TaskStore

	// Statuses — статусы задач для сверки в sweep'е.
	Statuses StatusReader

	// MQ
	Publisher Publisher
	Conn      *mq.Connection

	// SweepInterval — интервал sweep'а зависших звеньев (default: 30s).
	SweepInterval time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		taskStore:     cfg.TaskStore,
		statuses:      cfg.Statuses,
		publisher:     cfg.Publisher,
		conn:          cfg.Conn,
		active:        make(map[uuid.UUID]*ExecState),
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Start запускает Dispatcher.
//
// Запускает:
//   - Consumer для flows.submitted
//   - Consumer для tasks.completed
//   - Consumer для tasks.control
//   - Sweep горутину для fallback
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	d.logger.Info("starting dispatcher", "sweep_interval", d.sweepInterval)

	d.flowConsumer = mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueFlowsSubmitted),
		Handler:  d.handleFlowSubmitted,
		Prefetch: defaultPrefetch,
	})

	d.taskConsumer = mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueTasksCompleted),
		Handler:  d.handleTaskCompleted,
		Prefetch: defaultPrefetch,
	})

	d.controlConsumer = mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueTasksControl),
		Handler:  d.handleControl,
		Prefetch: defaultPrefetch,
	})

	for _, consumer := range []*mq.Consumer{d.flowConsumer, d.taskConsumer, d.controlConsumer} {
		c := consumer
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("consumer error", "error", err)
			}
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweepLoop(ctx)
	}()

	d.logger.Info("dispatcher started")
	return nil
}

// Stop останавливает Dispatcher.
func (d *Dispatcher) Stop() {
	d.stoppedMu.Lock()
	d.stopped = true
	d.stoppedMu.Unlock()

	d.logger.Info("stopping dispatcher...")

	if d.cancelFunc != nil {
		d.cancelFunc()
	}

	for _, consumer := range []*mq.Consumer{d.flowConsumer, d.taskConsumer, d.controlConsumer} {
		if consumer != nil {
			consumer.Stop()
		}
	}

	d.wg.Wait()

	d.logger.Info("dispatcher stopped", "active_executions", len(d.active))
}

// IsStopped проверяет, остановлен ли Dispatcher.
func (d *Dispatcher) IsStopped() bool {
	d.stoppedMu.RLock()
	defer d.stoppedMu.RUnlock()
	return d.stopped
}

// sweepLoop — цикл sweep'а для fallback.
func (d *Dispatcher) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// sweep сверяет зависшие звенья с БД.
//
// Для каждой активной отправки, чьё звено раздавалось давно:
// терминальные статусы из БД подхватываются (потерянные события
// завершения), задачи всё ещё в PENDING раздаются повторно.
func (d *Dispatcher) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-d.sweepInterval)

	for _, state := range d.activeStates() {
		if !state.DispatchedBefore(cutoff) {
			continue
		}

		for _, sig := range state.PendingInUnit() {
			status, _, err := d.statuses.GetStatus(ctx, sig.TaskID)
			if err != nil {
				d.logger.Warn("sweep: failed to load task status",
					"task_id", sig.TaskID,
					"error", err,
				)
				continue
			}

			if status.IsTerminal() {
				// Потерянное событие завершения — подхватываем из БД
				d.applyCompletion(ctx, state, sig.TaskID, status)
				continue
			}

			if status == domain.StatusPending {
				d.logger.Info("sweep: redelivering task",
					"task_id", sig.TaskID,
					"execution_id", state.ExecutionID(),
				)
				telemetry.SweepRedeliveries.Inc()
				d.publishReady(ctx, state, sig)
			}
		}
	}
}

// activeStates возвращает снимок активных отправок.
func (d *Dispatcher) activeStates() []*ExecState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	states := make([]*ExecState, 0, len(d.active))
	for _, state := range d.active {
		states = append(states, state)
	}
	return states
}

// getActive возвращает активное состояние отправки.
func (d *Dispatcher) getActive(executionID uuid.UUID) *ExecState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active[executionID]
}

// addActive добавляет отправку в активные.
func (d *Dispatcher) addActive(state *ExecState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.active[state.ExecutionID()]; exists {
		return ErrExecAlreadyActive
	}
	d.active[state.ExecutionID()] = state
	telemetry.ActiveExecutions.Set(float64(len(d.active)))
	return nil
}

// removeActive удаляет отправку из активных.
func (d *Dispatcher) removeActive(executionID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, executionID)
	telemetry.ActiveExecutions.Set(float64(len(d.active)))
}

// ActiveCount возвращает количество активных отправок.
func (d *Dispatcher) ActiveCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.active)
}
