// Package flows реализует контроллер жизненного цикла flow.
//
// Controller связывает сборщик canvas, хранилища flow/task-записей
// и очередь выполнения в единый API:
//   - Create — создание flow с валидацией дескриптора
//   - Assemble — однократная сборка canvas и Task-записей
//   - Start — отправка canvas в очередь выполнения
//   - Run — сквозной сценарий: проверка payload, подготовка объекта
//     хранилища, старт и уведомление депозита
//   - Stop — best-effort отзыв ещё не начатых задач
//   - RestartTask — перезапуск одной задачи с тем же id
//   - Clean / Delete — откат артефактов и мягкое удаление
//
// Все внешние зависимости контроллера — интерфейсы (ports.go),
// что позволяет тестировать его на in-memory дублёрах.
package flows
