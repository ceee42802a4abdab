// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//   - queue.go      — адаптер очереди выполнения (flows.ExecutionQueue)
//
// Типы сообщений:
//   - flow.submitted      — canvas flow отправлен на выполнение
//   - task.ready          — задача готова к выполнению
//   - task.completed      — задача завершена
//   - task.revoked        — запрошена отмена задачи
//   - execution.forgotten — состояние отправки можно сбросить
//
// Exchanges:
//   - cds.flows   — события flows
//   - cds.tasks   — события tasks
//   - cds.dlq     — dead letter queue
package mq
