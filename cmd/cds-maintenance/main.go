// CDS Maintenance — фоновое обслуживание хранилища flow.
//
// Maintenance:
//   - Физически удаляет flow, помеченные удалёнными дольше retention
//   - Переводит задачи, зависшие в STARTED, в FAILURE
//
// В кластере проходы выполняет только лидер: лидерство берётся
// через pg_try_advisory_lock.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrcastro2/cds-videos/internal/maintenance"
	"github.com/jrcastro2/cds-videos/internal/repo"
	"github.com/jrcastro2/cds-videos/internal/telemetry"
)

const maintenanceLockKey int64 = 271828

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting cds-maintenance")

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

	m := maintenance.New(maintenance.Config{
		FlowStore: repo.NewFlowRepo(pool),
		TaskStore: repo.NewTaskRepo(pool),
		Logger:    logger,
	})

	// Лидер-цикл: проходы запускаются только после захвата advisory lock
	go func() {
		tk := time.NewTicker(5 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", maintenanceLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				if hasLock {
					continue
				}

				var ok bool
				if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", maintenanceLockKey).Scan(&ok); err != nil {
					logger.Warn("advisory lock attempt failed", "error", err)
					continue
				}
				if !ok {
					// не лидер — пробуем на следующем тике
					continue
				}

				hasLock = true
				logger.Info("acquired maintenance leadership")
				if err := m.Start(ctx); err != nil {
					logger.Error("failed to start maintenance", "error", err)
					cancel()
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("MAINTENANCE_PORT"); v != "" {
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

	m.Stop()
	logger.Info("cds-maintenance stopped")
}
