package engine

import "errors"

// Ошибки сборки flow.
var (
	// ErrAlreadyAssembled — flow уже владеет Task-записями.
	// Сборка выполняется ровно один раз.
	ErrAlreadyAssembled = errors.New("flow already assembled")

	// ErrUnknownTask — имя задачи не найдено в реестре.
	ErrUnknownTask = errors.New("unknown task name")

	// ErrInvalidStep — шаг не является ни одиночной задачей,
	// ни параллельной группой.
	ErrInvalidStep = errors.New("invalid step")

	// ErrEmptyCanvas — в canvas нет ни одной единицы работы.
	ErrEmptyCanvas = errors.New("canvas has no units")
)
