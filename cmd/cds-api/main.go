// CDS API — HTTP API управления flows.
//
// API:
//   - Создание, запуск, остановка и удаление flows
//   - Перезапуск отдельных задач
//   - Статусы задач и агрегированные статусы депозитов
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrcastro2/cds-videos/internal/api"
	"github.com/jrcastro2/cds-videos/internal/deposits"
	"github.com/jrcastro2/cds-videos/internal/flows"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/repo"
	"github.com/jrcastro2/cds-videos/internal/storage"
	"github.com/jrcastro2/cds-videos/internal/tasks"
	"github.com/jrcastro2/cds-videos/internal/telemetry"
	"github.com/jrcastro2/cds-videos/internal/worker"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting cds-api")

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

	// Создаём репозитории
	flowRepo := repo.NewFlowRepo(pool)
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
	queue := mq.NewExecutionQueue(publisher)

	// Объектное хранилище
	storeCfg, err := storage.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(1)
	}
	objects, err := storage.New(storeCfg)
	if err != nil {
		logger.Error("failed to create object store", "error", err)
		os.Exit(1)
	}

	// Уведомления депозитов (опционально)
	var notifier flows.DepositNotifier
	if depositURL := os.Getenv("DEPOSIT_API_URL"); depositURL != "" {
		notifier = deposits.NewNotifier(depositURL)
		logger.Info("deposit notifications enabled", "url", depositURL)
	}

	// Контроллер flows; отмена задач при Stop идёт через обёртку
	// исполнителя
	controller := flows.New(flows.Config{
		FlowStore: flowRepo,
		TaskStore: taskRepo,
		Queue:     queue,
		Runtime:   worker.NewWrapper(taskRepo, publisher, logger),
		Registry:  tasks.DefaultRegistry(objects, tasks.NewEncoderClient("")),
		Objects:   objects,
		Deposits:  notifier,
		Logger:    logger,
	})

	// API handler
	handler := api.NewHandler(api.Config{
		Flows:  controller,
		Tasks:  taskRepo,
		Logger: logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("cds-api stopped")
}
