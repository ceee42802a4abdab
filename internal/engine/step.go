package engine

// TaskSpec — задача с аргументами конкретного шага.
// Name — короткое имя из реестра (например, "file_transcode").
type TaskSpec struct {
	Name   string
	Kwargs map[string]any
}

// Step — шаг сборки flow. Конструкция времени сборки, в БД не хранится.
//
// Шаг — либо одиночная задача (Task), либо параллельная группа (Group).
// Шаги выполняются строго последовательно; все члены группы должны
// достичь терминального статуса прежде, чем следующий шаг станет
// готовым. Эту очерёдность обеспечивает chain/group-конструкция
// backend'а очереди, движок её повторно не проверяет.
type Step struct {
	// Task — одиночный шаг. Взаимоисключим с Group.
	Task *TaskSpec

	// Group — упорядоченная последовательность задач, выполняемых
	// параллельно с общим набором предшественников.
	Group []TaskSpec
}

// Single создаёт одиночный шаг.
func Single(name string, kwargs map[string]any) Step {
	return Step{Task: &TaskSpec{Name: name, Kwargs: kwargs}}
}

// Parallel создаёт шаг-группу.
func Parallel(specs ...TaskSpec) Step {
	return Step{Group: specs}
}

// Validate проверяет, что шаг корректно сформирован:
// ровно одна из двух форм, группа непуста.
func (s Step) Validate() error {
	if s.Task != nil && s.Group != nil {
		return ErrInvalidStep
	}
	if s.Task == nil && len(s.Group) == 0 {
		return ErrInvalidStep
	}
	return nil
}
