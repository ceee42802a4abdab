package engine

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
)

// Signature — полностью подготовленный вызов одной задачи:
// id, квалифицированное имя типа и снимок kwargs. Аналог единицы
// работы, которую получает воркер.
type Signature struct {
	// TaskID — id задачи, назначенный сборщиком. Совпадает с id
	// Task-записи в БД.
	TaskID uuid.UUID `json:"task_id"`

	// Name — квалифицированное имя типа задачи для разрешения
	// реализации на стороне воркера.
	Name string `json:"name"`

	// Kwargs — аргументы вызова.
	Kwargs map[string]any `json:"kwargs"`
}

// Unit — звено цепочки canvas: одна сигнатура или параллельная
// подгруппа сигнатур, выполняемых одновременно.
type Unit struct {
	// Signatures — сигнатуры звена. Для одиночного звена ровно одна.
	Signatures []Signature `json:"signatures"`

	// Group — true, если звено является параллельной группой.
	Group bool `json:"group"`
}

// Canvas — собранный план выполнения flow: упорядоченная цепочка
// звеньев. Canvas непрозрачен для вызывающего и воспроизводим —
// его можно сериализовать, отправить в очередь и выполнить позже.
// Построение canvas ничего не выполняет.
type Canvas struct {
	// ID — идентификатор отправки. Новый на каждую отправку,
	// в отличие от id задач, переживающих перезапуск.
	ID uuid.UUID `json:"id"`

	// FlowID — владеющий flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Units — звенья цепочки в порядке выполнения.
	Units []Unit `json:"units"`
}

// TaskIDs возвращает id всех задач canvas в порядке звеньев.
func (c *Canvas) TaskIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, u := range c.Units {
		for _, sig := range u.Signatures {
			ids = append(ids, sig.TaskID)
		}
	}
	return ids
}

// Rebuild восстанавливает canvas из уже созданных записей задач.
// Задачи должны идти в порядке создания; звено определяется набором
// предшественников, который в цепочке уникален (previous звена — это
// id задач предыдущего звена). Группировка идёт по этому набору, а не
// по смежности строк: совпавшие временные метки могут перемешать
// строки соседних звеньев, но не должны дробить звено. Восстановленный
// canvas эквивалентен исходному, но получает новый id отправки.
func Rebuild(flowID uuid.UUID, tasks []domain.Task) (*Canvas, error) {
	if len(tasks) == 0 {
		return nil, ErrEmptyCanvas
	}

	canvas := &Canvas{ID: uuid.New(), FlowID: flowID}

	unitFor := make(map[string]int)
	for _, task := range tasks {
		key := previousKey(task.Previous)
		idx, ok := unitFor[key]
		if !ok {
			idx = len(canvas.Units)
			canvas.Units = append(canvas.Units, Unit{})
			unitFor[key] = idx
		}
		canvas.Units[idx].Signatures = append(canvas.Units[idx].Signatures, Signature{
			TaskID: task.ID,
			Name:   task.Name,
			Kwargs: task.Payload,
		})
	}
	for i := range canvas.Units {
		canvas.Units[i].Group = len(canvas.Units[i].Signatures) > 1
	}
	return canvas, nil
}

func previousKey(previous []uuid.UUID) string {
	ids := make([]string, len(previous))
	for i, id := range previous {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// SingleUnit строит canvas из одной сигнатуры.
// Используется при перезапуске отдельной задачи.
func SingleUnit(flowID uuid.UUID, sig Signature) *Canvas {
	return &Canvas{
		ID:     uuid.New(),
		FlowID: flowID,
		Units:  []Unit{{Signatures: []Signature{sig}}},
	}
}
