package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
)

// Resolver разрешает короткое имя задачи в квалифицированное имя типа.
// Реализуется реестром задач; при промахе возвращает ошибку,
// совместимую с ErrUnknownTask.
type Resolver interface {
	QualifiedName(name string) (string, error)
}

// TaskStore — минимальный контракт хранилища Task-записей,
// нужный сборщику.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	ListByFlow(ctx context.Context, flowID uuid.UUID) ([]domain.Task, error)
}

// Assembler превращает шаги flow в canvas, создавая Task-записи.
type Assembler struct {
	resolver Resolver
	tasks    TaskStore
}

// NewAssembler создаёт Assembler.
func NewAssembler(resolver Resolver, tasks TaskStore) *Assembler {
	return &Assembler{resolver: resolver, tasks: tasks}
}

// Assemble собирает canvas из шагов flow.
//
// Для каждого шага создаёт Task-записи (одну для одиночного шага,
// по одной на члена группы — все с общим набором предшественников)
// и добавляет соответствующее звено в цепочку. Id задач нового шага
// становятся предшественниками следующего.
//
// Возвращает ErrAlreadyAssembled, если flow уже владеет Task-записями:
// сборка выполняется ровно один раз, повторная попытка не изменяет
// набор записей.
func (a *Assembler) Assemble(ctx context.Context, flow *domain.Flow, steps []Step) (*Canvas, error) {
	existing, err := a.tasks.ListByFlow(ctx, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("list flow tasks: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: flow %s has %d tasks", ErrAlreadyAssembled, flow.ID, len(existing))
	}

	canvas := &Canvas{
		ID:     uuid.New(),
		FlowID: flow.ID,
	}

	var previous []uuid.UUID

	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		if step.Task != nil {
			sig, err := a.newTask(ctx, flow, *step.Task, previous)
			if err != nil {
				return nil, err
			}
			canvas.Units = append(canvas.Units, Unit{Signatures: []Signature{sig}})
			previous = []uuid.UUID{sig.TaskID}
			continue
		}

		sigs := make([]Signature, 0, len(step.Group))
		ids := make([]uuid.UUID, 0, len(step.Group))
		for _, spec := range step.Group {
			sig, err := a.newTask(ctx, flow, spec, previous)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, sig)
			ids = append(ids, sig.TaskID)
		}
		canvas.Units = append(canvas.Units, Unit{Signatures: sigs, Group: true})
		previous = ids
	}

	if len(canvas.Units) == 0 {
		return nil, ErrEmptyCanvas
	}

	return canvas, nil
}

// newTask создаёт Task-запись и сигнатуру для одной задачи шага.
//
// Kwargs задачи: глубокая копия payload flow, перекрытая kwargs шага,
// перекрытая парой flow_id/task_id. Ключ "flow" (если есть) вычищается,
// чтобы не встраивать владеющий объект в его собственный payload.
func (a *Assembler) newTask(ctx context.Context, flow *domain.Flow, spec TaskSpec, previous []uuid.UUID) (Signature, error) {
	qualified, err := a.resolver.QualifiedName(spec.Name)
	if err != nil {
		return Signature{}, err
	}

	taskID := uuid.New()

	kwargs := DeepCopyPayload(flow.Payload)
	for k, v := range spec.Kwargs {
		kwargs[k] = v
	}
	kwargs["flow_id"] = flow.ID.String()
	kwargs["task_id"] = taskID.String()
	delete(kwargs, "flow")

	// Предшественники копируются: вызывающий переиспользует свой slice
	prev := make([]uuid.UUID, len(previous))
	copy(prev, previous)

	now := time.Now()
	task := &domain.Task{
		ID:        taskID,
		FlowID:    flow.ID,
		Name:      qualified,
		Previous:  prev,
		Payload:   kwargs,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.tasks.Create(ctx, task); err != nil {
		return Signature{}, fmt.Errorf("create task %s: %w", taskID, err)
	}

	return Signature{TaskID: taskID, Name: qualified, Kwargs: kwargs}, nil
}

// DeepCopyPayload делает глубокую копию payload: вложенные
// map[string]any и []any копируются рекурсивно, скаляры — как есть.
func DeepCopyPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return DeepCopyPayload(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
