package flows

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки контроллера flow.
var (
	// ErrFlowNotFound — flow с указанным id не существует.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrTaskNotFound — задача не существует или не принадлежит flow.
	ErrTaskNotFound = errors.New("task not found")

	// ErrSubmission — очередь выполнения отклонила отправку canvas.
	// Flow остаётся собранным, но не запущенным; Start можно повторить.
	ErrSubmission = errors.New("execution submission rejected")
)

// ValidationError — дескриптор flow неполон при создании.
// Перечисляет все отсутствующие поля сразу.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid flow descriptor: missing %s", strings.Join(e.Missing, ", "))
}

// PreconditionError — payload flow не содержит ключей, обязательных
// для запуска. Перечисляет все отсутствующие ключи сразу.
type PreconditionError struct {
	Missing []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("flow payload incomplete: missing %s", strings.Join(e.Missing, ", "))
}
