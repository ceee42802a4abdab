package dispatcher

import "errors"

// Ошибки диспетчера.
var (
	// ErrExecAlreadyActive — отправка уже обрабатывается.
	ErrExecAlreadyActive = errors.New("execution already being processed")

	// ErrExecNotActive — отправка не найдена в активных.
	ErrExecNotActive = errors.New("execution not in active set")

	// ErrExecFinished — цепочка canvas уже пройдена до конца.
	ErrExecFinished = errors.New("execution already finished")

	// ErrTaskNotInUnit — задача не входит в текущее звено.
	ErrTaskNotInUnit = errors.New("task not in current unit")
)
