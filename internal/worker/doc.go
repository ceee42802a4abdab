// Package worker выполняет отдельные задачи flow.
//
// # Обзор
//
// Worker — stateless компонент, выполняющий задачи, раздаваемые
// диспетчером через очередь tasks.ready. Worker отвечает за:
//
//   - Получение сигнатур задач из RabbitMQ
//   - Пропуск задач не в статусе PENDING (отмена, вытеснение перезапуском)
//   - Разрешение реализации по квалифицированному имени через реестр
//   - Фиксацию терминального статуса на Task-записи ровно один раз
//   - Публикацию task.completed после фиксации статуса
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди tasks.ready.
//
// # Wrapper
//
// Wrapper — обёртка вокруг выполнения задачи. Контракт:
//
//  1. Действующий id задачи — id из kwargs отправки, а не id,
//     назначенный бэкендом (EffectiveTaskID).
//  2. Терминальный статус записывается на Task-запись до любой
//     дальнейшей обработки; запись может быть ещё не видна из-за
//     гонки порядка commit'ов — чтение повторяется с задержкой.
//  3. Делегирование (лог, публикация task.completed) выполняется
//     после commit и не может его отменить.
//
// Помимо выполнения Wrapper предоставляет GetStatus и StopTask
// (отмена только ещё не начатых задач): контроллер flows отменяет
// через него задачи при Stop, диспетчер сверяет статусы в sweep'е.
package worker
