// Package telemetry обеспечивает наблюдаемость системы.
//
// logging.go настраивает structured logging через slog (LOG_LEVEL,
// LOG_FORMAT). metrics.go объявляет Prometheus-метрики движка:
// отправки flows, выполнения задач по имени и статусу, длительности
// выполнения, активные отправки диспетчера и повторные доставки
// sweep'а. Каждый сервис экспортирует их на своём /metrics endpoint.
package telemetry
