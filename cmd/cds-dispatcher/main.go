// CDS Dispatcher — продвигает выполнение отправленных canvas.
//
// Dispatcher:
//   - Получает canvas из flows.submitted
//   - Раздаёт сигнатуры текущего звена воркерам (task.ready)
//   - Отслеживает task.completed и продвигает цепочку
//   - Переотправляет зависшие задачи через sweep
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrcastro2/cds-videos/internal/dispatcher"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/repo"
	"github.com/jrcastro2/cds-videos/internal/telemetry"
	"github.com/jrcastro2/cds-videos/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting cds-dispatcher")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	taskRepo := repo.NewTaskRepo(pool)

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Создаём dispatcher; статусы задач sweep сверяет через обёртку
	// исполнителя
	d := dispatcher.New(dispatcher.Config{
		TaskStore: taskRepo,
		Statuses:  worker.NewWrapper(taskRepo, publisher, logger),
		Publisher: publisher,
		Conn:      mqConn,
		Logger:    logger,
	})

	// Запускаем dispatcher
	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("DISPATCHER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	d.Stop()
	logger.Info("cds-dispatcher stopped")
}
