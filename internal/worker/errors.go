package worker

import "errors"

// Ошибки воркера.
var (
	// ErrTaskNotFound — Task-запись не найдена в БД.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotPending — задача не в статусе PENDING.
	// Выполнение пропускается: задача отозвана или уже выполнена.
	ErrTaskNotPending = errors.New("task is not in PENDING status")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
