// Package maintenance реализует фоновое обслуживание хранилища flow.
//
// Maintenance запускает по cron-расписанию два прохода:
//   - purge: физическое удаление flow, помеченных удалёнными дольше
//     срока хранения, вместе с их задачами;
//   - stale: перевод задач, зависших в STARTED (воркер умер посреди
//     выполнения), в FAILURE с диагностикой.
//
// Использование:
//
//	m := maintenance.New(maintenance.Config{
//	    FlowStore: flowRepo,
//	    TaskStore: taskRepo,
//	    Logger:    logger,
//	})
//	if err := m.Start(ctx); err != nil { ... }
//	defer m.Stop()
//
// Maintenance не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock; в кластере
// проходы выполняет только лидер.
package maintenance
