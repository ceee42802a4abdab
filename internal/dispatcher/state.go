package dispatcher

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/engine"
)

// ExecState — состояние выполнения одного canvas в памяти.
//
// ExecState создаётся при получении flow.submitted и удаляется, когда
// цепочка пройдена до конца или остановлена. Содержит canvas, номер
// текущего звена и терминальные статусы задач.
type ExecState struct {
	// Canvas — выполняемый план.
	Canvas *engine.Canvas

	// unit — индекс текущего звена цепочки.
	unit int

	// done — терминальные статусы задач canvas (taskID → status).
	done map[uuid.UUID]domain.Status

	// halted — цепочка остановлена (FAILURE или REVOKED в звене).
	halted bool

	// dispatchedAt — время последней раздачи текущего звена.
	// Используется sweep'ом для повторной раздачи зависших задач.
	dispatchedAt time.Time

	mu sync.RWMutex
}

// NewExecState создаёт состояние для canvas.
func NewExecState(canvas *engine.Canvas) *ExecState {
	return &ExecState{
		Canvas: canvas,
		done:   make(map[uuid.UUID]domain.Status),
	}
}

// ExecutionID возвращает id отправки.
func (s *ExecState) ExecutionID() uuid.UUID {
	return s.Canvas.ID
}

// FlowID возвращает id владеющего flow.
func (s *ExecState) FlowID() uuid.UUID {
	return s.Canvas.FlowID
}

// CurrentUnit возвращает текущее звено цепочки.
// ok == false, если цепочка пройдена до конца.
func (s *ExecState) CurrentUnit() (engine.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unit >= len(s.Canvas.Units) {
		return engine.Unit{}, false
	}
	return s.Canvas.Units[s.unit], true
}

// MarkDispatched фиксирует время раздачи текущего звена.
func (s *ExecState) MarkDispatched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchedAt = time.Now()
}

// DispatchedBefore сообщает, раздавалось ли текущее звено раньше
// указанного момента.
func (s *ExecState) DispatchedBefore(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.dispatchedAt.IsZero() && s.dispatchedAt.Before(cutoff)
}

// Progress — исход записи терминального статуса в CompleteTask.
type Progress int

const (
	// ProgressNone — текущее звено ещё не закрыто, раздавать нечего.
	ProgressNone Progress = iota

	// ProgressDispatch — звено закрыто, следующее готово к раздаче.
	ProgressDispatch

	// ProgressFinished — цепочка пройдена до конца.
	ProgressFinished

	// ProgressHalted — цепочка остановлена и текущее звено доиграно.
	ProgressHalted
)

// CompleteTask записывает терминальный статус задачи и, если этим
// вызовом закрывается текущее звено, продвигает цепочку. FAILURE и
// REVOKED останавливают цепочку: текущее звено доигрывает, следующие
// звенья не раздаются.
//
// Запись статуса и решение о продвижении выполняются под одной
// блокировкой: события completed/revoked и sweep применяются
// конкурентно, и закрыть звено может ровно один вызов. Возвращённое
// звено валидно только при ProgressDispatch.
func (s *ExecState) CompleteTask(taskID uuid.UUID, status domain.Status) (engine.Unit, Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done[taskID] = status
	if status == domain.StatusFailure || status == domain.StatusRevoked {
		s.halted = true
	}

	if s.unit >= len(s.Canvas.Units) {
		// Поздний дубль после конца цепочки
		return engine.Unit{}, ProgressNone
	}
	for _, sig := range s.Canvas.Units[s.unit].Signatures {
		if _, ok := s.done[sig.TaskID]; !ok {
			return engine.Unit{}, ProgressNone
		}
	}

	if s.halted {
		return engine.Unit{}, ProgressHalted
	}

	s.unit++
	if s.unit >= len(s.Canvas.Units) {
		return engine.Unit{}, ProgressFinished
	}
	return s.Canvas.Units[s.unit], ProgressDispatch
}

// Halted сообщает, остановлена ли цепочка.
func (s *ExecState) Halted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.halted
}

// IsFinished сообщает, завершено ли выполнение: цепочка пройдена
// до конца либо остановлена и текущее звено доиграно.
func (s *ExecState) IsFinished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unit >= len(s.Canvas.Units) {
		return true
	}
	if !s.halted {
		return false
	}
	for _, sig := range s.Canvas.Units[s.unit].Signatures {
		if _, ok := s.done[sig.TaskID]; !ok {
			return false
		}
	}
	return true
}

// PendingInUnit возвращает сигнатуры текущего звена без терминального
// статуса. Используется sweep'ом.
func (s *ExecState) PendingInUnit() []engine.Signature {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unit >= len(s.Canvas.Units) {
		return nil
	}
	var pending []engine.Signature
	for _, sig := range s.Canvas.Units[s.unit].Signatures {
		if _, ok := s.done[sig.TaskID]; !ok {
			pending = append(pending, sig)
		}
	}
	return pending
}

// Contains сообщает, принадлежит ли задача этому canvas.
func (s *ExecState) Contains(taskID uuid.UUID) bool {
	for _, unit := range s.Canvas.Units {
		for _, sig := range unit.Signatures {
			if sig.TaskID == taskID {
				return true
			}
		}
	}
	return false
}

// RestoreProgress восстанавливает состояние из Task-записей:
// терминальные статусы помечаются как done, текущее звено
// продвигается до первого не завершённого.
func (s *ExecState) RestoreProgress(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[uuid.UUID]domain.Status, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = tasks[i].Status
	}

	for _, unit := range s.Canvas.Units {
		for _, sig := range unit.Signatures {
			status, ok := byID[sig.TaskID]
			if !ok || !status.IsTerminal() {
				continue
			}
			s.done[sig.TaskID] = status
			if status == domain.StatusFailure || status == domain.StatusRevoked {
				s.halted = true
			}
		}
	}

	// Продвигаемся до первого звена с незавершёнными задачами
	for s.unit < len(s.Canvas.Units) {
		complete := true
		for _, sig := range s.Canvas.Units[s.unit].Signatures {
			if status, ok := s.done[sig.TaskID]; !ok || status != domain.StatusSuccess {
				complete = false
				break
			}
		}
		if !complete {
			break
		}
		s.unit++
	}
}

// Stats возвращает статистику выполнения.
func (s *ExecState) Stats() ExecStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, unit := range s.Canvas.Units {
		total += len(unit.Signatures)
	}
	return ExecStats{
		TotalTasks: total,
		DoneTasks:  len(s.done),
		Unit:       s.unit,
		Units:      len(s.Canvas.Units),
		Halted:     s.halted,
	}
}

// ExecStats — статистика выполнения canvas.
type ExecStats struct {
	TotalTasks int
	DoneTasks  int
	Unit       int
	Units      int
	Halted     bool
}
