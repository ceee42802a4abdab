package domain

// Status — статус выполнения задачи (и, агрегированно, всего flow).
//
// Жизненный цикл задачи:
//
//	PENDING → STARTED → SUCCESS
//	                  ↘ FAILURE
//	          (или) → REVOKED (отмена из PENDING)
//
// Терминальная задача (FAILURE или REVOKED) может быть перезапущена —
// это единственный допустимый переход "назад", обратно в PENDING.
type Status string

const (
	// StatusPending — задача создана, но ещё не взята воркером.
	StatusPending Status = "PENDING"

	// StatusStarted — задача выполняется воркером.
	StatusStarted Status = "STARTED"

	// StatusSuccess — задача успешно завершена.
	StatusSuccess Status = "SUCCESS"

	// StatusFailure — задача завершилась с ошибкой.
	StatusFailure Status = "FAILURE"

	// StatusRevoked — задача отменена до начала выполнения.
	StatusRevoked Status = "REVOKED"
)

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusRevoked:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление статуса.
func (s Status) String() string {
	return string(s)
}

// ComputeStatus сворачивает статусы дочерних задач в один родительский.
//
// Правила доминирования (в порядке приоритета):
//  1. Любой FAILURE ⇒ FAILURE
//  2. Иначе любой REVOKED ⇒ REVOKED
//  3. Иначе любой PENDING или STARTED ⇒ STARTED (работа ещё идёт)
//  4. Иначе (все SUCCESS, непустой вход) ⇒ SUCCESS
//  5. Пустой вход ⇒ PENDING
//
// Порядок и дубликаты входа значения не имеют.
func ComputeStatus(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusPending
	}

	var revoked, inFlight bool

	for _, s := range statuses {
		switch s {
		case StatusFailure:
			// FAILURE доминирует независимо от группировки
			return StatusFailure
		case StatusRevoked:
			revoked = true
		case StatusPending, StatusStarted:
			inFlight = true
		}
	}

	if revoked {
		return StatusRevoked
	}
	if inFlight {
		return StatusStarted
	}
	return StatusSuccess
}

// MergeTaskStatuses объединяет две карты "имя задачи → статус",
// применяя те же правила доминирования по каждому ключу.
//
// Используется для свода статусов по депозиту, когда статусы приходят
// из двух независимых источников (например, мигрированный legacy flow
// и текущий flow).
func MergeTaskStatuses(a, b map[string]Status) map[string]Status {
	merged := make(map[string]Status, len(a)+len(b))

	for key := range a {
		statuses := []Status{a[key]}
		if other, ok := b[key]; ok {
			statuses = append(statuses, other)
		}
		merged[key] = ComputeStatus(statuses)
	}
	for key, status := range b {
		if _, ok := merged[key]; !ok {
			merged[key] = ComputeStatus([]Status{status})
		}
	}

	return merged
}
