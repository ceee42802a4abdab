// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go      — Handler с DI (контроллер flows, задачи, logger)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (logging, recovery)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - flow_handler.go — обработчики для /flows и /deposits
//
// API предоставляет REST endpoints для управления flows: создание,
// запуск, остановка, перезапуск задач, удаление и статусы депозита.
package api
