package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/tasks"
)

// Default configuration values.
const (
	defaultPrefetch = 5
)

// Worker выполняет отдельные задачи flow.
//
// Worker — stateless компонент системы, который:
//   - Получает сигнатуры задач из очереди tasks.ready
//   - Пропускает задачи, уже не находящиеся в PENDING (отозванные
//     или вытесненные перезапуском)
//   - Разрешает реализацию по квалифицированному имени через реестр
//   - Выполняет задачу через Wrapper: терминальный статус фиксируется
//     на Task-записи до публикации task.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	store    TaskStore
	registry *tasks.Registry
	wrapper  *Wrapper

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Consumer
	consumer *mq.Consumer

	// Configuration
	prefetch int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Store — хранилище Task-записей.
	Store TaskStore

	// Registry — реестр реализаций задач.
	Registry *tasks.Registry

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Prefetch — количество сообщений предварительной загрузки
	// (default: 5).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		store:     cfg.Store,
		registry:  cfg.Registry,
		wrapper:   NewWrapper(cfg.Store, cfg.Publisher, logger),
		publisher: cfg.Publisher,
		conn:      cfg.Conn,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает Worker: consumer для tasks.ready.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker", "prefetch", w.prefetch)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueTasksReady),
		Handler:  w.handleTaskReady,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("task consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
