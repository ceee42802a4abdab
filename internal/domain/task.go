package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — единица работы внутри flow.
//
// Task создаётся сборщиком flow до отправки в очередь, поэтому запись
// в БД и единица работы в очереди делят один и тот же id. Статус задачи
// движется только вперёд; единственное исключение — явный перезапуск,
// который возвращает терминальную задачу (FAILURE или REVOKED) в PENDING
// и переотправляет её с тем же id.
type Task struct {
	// ID — уникальный идентификатор задачи. Назначается сборщиком
	// до отправки в очередь.
	ID uuid.UUID `json:"id"`

	// FlowID — ссылка на владеющий flow. Задача принадлежит ровно
	// одному flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Name — квалифицированное имя типа задачи
	// (например, "cds.tasks.TranscodeVideoTask").
	// По нему при перезапуске разрешается исполняемая реализация.
	Name string `json:"name"`

	// Previous — id задач-предшественников, которые должны успешно
	// завершиться прежде, чем эта задача станет готовой. Модель данных
	// только фиксирует объявленный порядок: фактическую очерёдность
	// обеспечивает backend очереди своей chain/group-семантикой.
	Previous []uuid.UUID `json:"previous"`

	// Payload — снимок kwargs на момент создания: payload flow,
	// перекрытый аргументами шага и парой flow_id/task_id.
	Payload map[string]any `json:"payload"`

	// Status — текущий статус задачи.
	Status Status `json:"status"`

	// Message — диагностика, записанная при успехе или ошибке.
	Message string `json:"message,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFinished возвращает true, если задача в терминальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkStarted переводит задачу в STARTED.
func (t *Task) MarkStarted() {
	t.Status = StatusStarted
	t.UpdatedAt = time.Now()
}

// MarkSuccess переводит задачу в SUCCESS с сообщением-результатом.
func (t *Task) MarkSuccess(message string) {
	t.Status = StatusSuccess
	t.Message = message
	t.UpdatedAt = time.Now()
}

// MarkFailure переводит задачу в FAILURE с текстом ошибки.
func (t *Task) MarkFailure(message string) {
	t.Status = StatusFailure
	t.Message = message
	t.UpdatedAt = time.Now()
}

// MarkRevoked переводит задачу в REVOKED.
// Вызывается только для задач, ещё не взятых воркером.
func (t *Task) MarkRevoked() {
	t.Status = StatusRevoked
	t.UpdatedAt = time.Now()
}

// ResetForRestart готовит терминальную задачу к переотправке:
// статус обратно в PENDING, диагностика очищается. Id сохраняется —
// backend очереди сам вытеснит устаревшую работу с тем же id.
func (t *Task) ResetForRestart() {
	t.Status = StatusPending
	t.Message = ""
	t.UpdatedAt = time.Now()
}
