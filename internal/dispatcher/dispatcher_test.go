package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/engine"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/repo"
)

// stubPublisher записывает раздачи task.ready.
type stubPublisher struct {
	ready []mq.TaskReadyPayload
}

func (p *stubPublisher) PublishTaskReady(_ context.Context, payload mq.TaskReadyPayload) error {
	p.ready = append(p.ready, payload)
	return nil
}

// stubStore — in-memory TaskStore диспетчера.
type stubStore struct {
	order []uuid.UUID
	tasks map[uuid.UUID]*domain.Task
}

func newStubStore() *stubStore {
	return &stubStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *stubStore) put(task *domain.Task) {
	if _, ok := s.tasks[task.ID]; !ok {
		s.order = append(s.order, task.ID)
	}
	copied := *task
	s.tasks[task.ID] = &copied
}

func (s *stubStore) GetStatus(_ context.Context, id uuid.UUID) (domain.Status, string, error) {
	task, ok := s.tasks[id]
	if !ok {
		return "", "", repo.ErrNotFound
	}
	return task.Status, task.Message, nil
}

func (s *stubStore) ListByFlow(_ context.Context, flowID uuid.UUID) ([]domain.Task, error) {
	var list []domain.Task
	for _, id := range s.order {
		if s.tasks[id].FlowID == flowID {
			list = append(list, *s.tasks[id])
		}
	}
	return list, nil
}

// testCanvas строит canvas: одиночное извлечение метаданных, затем
// параллельная группа из кадров и двух транскодов.
func testCanvas() *engine.Canvas {
	flowID := uuid.New()
	single := engine.Signature{TaskID: uuid.New(), Name: "cds.tasks.ExtractMetadataTask"}
	group := []engine.Signature{
		{TaskID: uuid.New(), Name: "cds.tasks.ExtractFramesTask"},
		{TaskID: uuid.New(), Name: "cds.tasks.TranscodeVideoTask"},
		{TaskID: uuid.New(), Name: "cds.tasks.TranscodeVideoTask"},
	}
	return &engine.Canvas{
		ID:     uuid.New(),
		FlowID: flowID,
		Units: []engine.Unit{
			{Signatures: []engine.Signature{single}},
			{Signatures: group, Group: true},
		},
	}
}

func newTestDispatcher(store *stubStore) (*Dispatcher, *stubPublisher) {
	publisher := &stubPublisher{}
	d := New(Config{
		TaskStore:     store,
		Statuses:      store,
		Publisher:     publisher,
		SweepInterval: time.Nanosecond,
	})
	return d, publisher
}

func completed(canvas *engine.Canvas, taskID uuid.UUID, status domain.Status) mq.TaskCompletedPayload {
	return mq.TaskCompletedPayload{
		TaskID:      taskID,
		FlowID:      canvas.FlowID,
		ExecutionID: canvas.ID,
		Status:      string(status),
	}
}

func TestProcessSubmitted_DispatchesFirstUnit(t *testing.T) {
	canvas := testCanvas()
	d, publisher := newTestDispatcher(newStubStore())

	if err := d.processSubmitted(context.Background(), canvas); err != nil {
		t.Fatalf("processSubmitted: %v", err)
	}

	if len(publisher.ready) != 1 {
		t.Fatalf("expected 1 dispatched task, got %d", len(publisher.ready))
	}
	if publisher.ready[0].Signature.TaskID != canvas.Units[0].Signatures[0].TaskID {
		t.Error("dispatched task is not the first unit's task")
	}
	if d.ActiveCount() != 1 {
		t.Errorf("active executions = %d, want 1", d.ActiveCount())
	}
}

func TestChainAdvances_WhenUnitSucceeds(t *testing.T) {
	canvas := testCanvas()
	d, publisher := newTestDispatcher(newStubStore())
	if err := d.processSubmitted(context.Background(), canvas); err != nil {
		t.Fatalf("processSubmitted: %v", err)
	}

	first := canvas.Units[0].Signatures[0].TaskID
	if err := d.processCompleted(context.Background(), completed(canvas, first, domain.StatusSuccess)); err != nil {
		t.Fatalf("processCompleted: %v", err)
	}

	// Первое звено + вся группа второго.
	if len(publisher.ready) != 4 {
		t.Fatalf("expected 4 dispatched tasks, got %d", len(publisher.ready))
	}
	dispatched := make(map[uuid.UUID]bool)
	for _, payload := range publisher.ready[1:] {
		dispatched[payload.Signature.TaskID] = true
	}
	for _, sig := range canvas.Units[1].Signatures {
		if !dispatched[sig.TaskID] {
			t.Errorf("group member %s not dispatched", sig.TaskID)
		}
	}
}

func TestGroupGatesCompletion(t *testing.T) {
	canvas := testCanvas()
	d, publisher := newTestDispatcher(newStubStore())
	if err := d.processSubmitted(context.Background(), canvas); err != nil {
		t.Fatalf("processSubmitted: %v", err)
	}

	first := canvas.Units[0].Signatures[0].TaskID
	_ = d.processCompleted(context.Background(), completed(canvas, first, domain.StatusSuccess))

	group := canvas.Units[1].Signatures
	_ = d.processCompleted(context.Background(), completed(canvas, group[0].TaskID, domain.StatusSuccess))
	_ = d.processCompleted(context.Background(), completed(canvas, group[1].TaskID, domain.StatusSuccess))

	// Группа не доиграна — отправка всё ещё активна.
	if d.ActiveCount() != 1 {
		t.Fatalf("execution finished before group completion")
	}

	_ = d.processCompleted(context.Background(), completed(canvas, group[2].TaskID, domain.StatusSuccess))
	if d.ActiveCount() != 0 {
		t.Errorf("execution still active after full completion")
	}
	if len(publisher.ready) != 4 {
		t.Errorf("unexpected extra dispatches: %d", len(publisher.ready))
	}
}

func TestChainHalts_OnFailure(t *testing.T) {
	canvas := testCanvas()
	// Третье звено, которое не должно раздаться.
	canvas.Units = append(canvas.Units, engine.Unit{
		Signatures: []engine.Signature{{TaskID: uuid.New(), Name: "cds.tasks.ExtractMetadataTask"}},
	})

	d, publisher := newTestDispatcher(newStubStore())
	if err := d.processSubmitted(context.Background(), canvas); err != nil {
		t.Fatalf("processSubmitted: %v", err)
	}

	first := canvas.Units[0].Signatures[0].TaskID
	_ = d.processCompleted(context.Background(), completed(canvas, first, domain.StatusSuccess))

	group := canvas.Units[1].Signatures
	_ = d.processCompleted(context.Background(), completed(canvas, group[0].TaskID, domain.StatusSuccess))
	_ = d.processCompleted(context.Background(), completed(canvas, group[1].TaskID, domain.StatusFailure))
	_ = d.processCompleted(context.Background(), completed(canvas, group[2].TaskID, domain.StatusSuccess))

	// Цепочка остановлена: третье звено не раздавалось.
	if len(publisher.ready) != 4 {
		t.Errorf("expected 4 dispatches (halted chain), got %d", len(publisher.ready))
	}
	if d.ActiveCount() != 0 {
		t.Errorf("halted execution not removed from active set")
	}
}

func TestRevokedHaltsChain(t *testing.T) {
	canvas := testCanvas()
	d, publisher := newTestDispatcher(newStubStore())
	if err := d.processSubmitted(context.Background(), canvas); err != nil {
		t.Fatalf("processSubmitted: %v", err)
	}

	first := canvas.Units[0].Signatures[0].TaskID
	d.processRevoked(context.Background(), first)

	// Отозванное одиночное звено останавливает цепочку целиком.
	if len(publisher.ready) != 1 {
		t.Errorf("group dispatched after revocation: %d dispatches", len(publisher.ready))
	}
	if d.ActiveCount() != 0 {
		t.Errorf("revoked execution not removed")
	}
}

func TestSweep_PicksUpStatusesAndRedelivers(t *testing.T) {
	canvas := testCanvas()
	store := newStubStore()
	d, publisher := newTestDispatcher(store)
	if err := d.processSubmitted(context.Background(), canvas); err != nil {
		t.Fatalf("processSubmitted: %v", err)
	}

	// Событие завершения первого звена потеряно: статус только в БД.
	first := canvas.Units[0].Signatures[0]
	store.put(&domain.Task{ID: first.TaskID, FlowID: canvas.FlowID, Name: first.Name, Status: domain.StatusSuccess})
	for _, sig := range canvas.Units[1].Signatures {
		store.put(&domain.Task{ID: sig.TaskID, FlowID: canvas.FlowID, Name: sig.Name, Status: domain.StatusPending})
	}

	time.Sleep(5 * time.Millisecond)
	d.sweep(context.Background())

	// Завершение подхвачено по статусу, группа раздана.
	if len(publisher.ready) != 4 {
		t.Fatalf("expected 4 dispatches after sweep, got %d", len(publisher.ready))
	}

	// Группа всё ещё в PENDING — повторная раздача.
	time.Sleep(5 * time.Millisecond)
	d.sweep(context.Background())
	if len(publisher.ready) != 7 {
		t.Fatalf("expected group redelivery (7 dispatches), got %d", len(publisher.ready))
	}

	// Группа доиграла, события снова потеряны.
	for _, sig := range canvas.Units[1].Signatures {
		store.put(&domain.Task{ID: sig.TaskID, FlowID: canvas.FlowID, Name: sig.Name, Status: domain.StatusSuccess})
	}
	time.Sleep(5 * time.Millisecond)
	d.sweep(context.Background())

	if d.ActiveCount() != 0 {
		t.Errorf("execution still active after sweep applied completions")
	}
}

func TestRestoreState_AfterRestart(t *testing.T) {
	canvas := testCanvas()
	store := newStubStore()

	// Task-записи в БД: первое звено завершено, группа в PENDING.
	var previous []uuid.UUID
	for i, unit := range canvas.Units {
		for _, sig := range unit.Signatures {
			status := domain.StatusPending
			if i == 0 {
				status = domain.StatusSuccess
			}
			store.put(&domain.Task{
				ID:       sig.TaskID,
				FlowID:   canvas.FlowID,
				Name:     sig.Name,
				Previous: previous,
				Status:   status,
			})
		}
		previous = nil
		for _, sig := range unit.Signatures {
			previous = append(previous, sig.TaskID)
		}
	}

	// Новый диспетчер без состояния в памяти.
	d, _ := newTestDispatcher(store)

	group := canvas.Units[1].Signatures
	for _, sig := range group {
		err := d.processCompleted(context.Background(), completed(canvas, sig.TaskID, domain.StatusSuccess))
		if err != nil {
			t.Fatalf("processCompleted after restart: %v", err)
		}
	}

	// Все завершения применены к восстановленному состоянию.
	if d.ActiveCount() != 0 {
		t.Errorf("restored execution not completed: %d active", d.ActiveCount())
	}
}

func TestExecState_RestoreProgress(t *testing.T) {
	canvas := testCanvas()
	state := NewExecState(canvas)

	var tasks []domain.Task
	tasks = append(tasks, domain.Task{
		ID:     canvas.Units[0].Signatures[0].TaskID,
		FlowID: canvas.FlowID,
		Status: domain.StatusSuccess,
	})
	for _, sig := range canvas.Units[1].Signatures {
		tasks = append(tasks, domain.Task{
			ID:     sig.TaskID,
			FlowID: canvas.FlowID,
			Status: domain.StatusPending,
		})
	}

	state.RestoreProgress(tasks)

	unit, ok := state.CurrentUnit()
	if !ok {
		t.Fatal("restored state is finished")
	}
	if !unit.Group {
		t.Error("current unit after restore should be the parallel group")
	}
	if state.Halted() {
		t.Error("restored state halted without failures")
	}
}

func TestCompleteTask_ConcurrentCompletionsAdvanceOnce(t *testing.T) {
	// Завершения одного звена приходят по трём конкурентным путям
	// (completed, control, sweep); раздать следующее звено должен
	// ровно один из них.
	for i := 0; i < 200; i++ {
		canvas := testCanvas()
		tail := engine.Unit{
			Signatures: []engine.Signature{{TaskID: uuid.New(), Name: "cds.tasks.ExtractMetadataTask"}},
		}
		canvas.Units = append(canvas.Units, tail)
		state := NewExecState(canvas)

		if _, progress := state.CompleteTask(canvas.Units[0].Signatures[0].TaskID, domain.StatusSuccess); progress != ProgressDispatch {
			t.Fatalf("first unit: progress = %d, want ProgressDispatch", progress)
		}

		group := canvas.Units[1].Signatures
		if _, progress := state.CompleteTask(group[0].TaskID, domain.StatusSuccess); progress != ProgressNone {
			t.Fatalf("incomplete group: progress = %d, want ProgressNone", progress)
		}

		// Последние две задачи группы завершаются одновременно.
		results := make(chan Progress, 2)
		var wg sync.WaitGroup
		for _, sig := range group[1:] {
			wg.Add(1)
			go func(taskID uuid.UUID) {
				defer wg.Done()
				_, progress := state.CompleteTask(taskID, domain.StatusSuccess)
				results <- progress
			}(sig.TaskID)
		}
		wg.Wait()
		close(results)

		dispatches := 0
		for progress := range results {
			switch progress {
			case ProgressDispatch:
				dispatches++
			case ProgressNone:
			default:
				t.Fatalf("unexpected progress %d", progress)
			}
		}
		if dispatches != 1 {
			t.Fatalf("group closed by %d callers, want exactly 1", dispatches)
		}

		next, ok := state.CurrentUnit()
		if !ok {
			t.Fatal("chain finished before tail unit")
		}
		if next.Signatures[0].TaskID != tail.Signatures[0].TaskID {
			t.Error("advance skipped the tail unit")
		}
	}
}

func TestCompleteTask_ConcurrentTailFinishesOnce(t *testing.T) {
	// В хвосте цепочки конкурентные завершения не должны дать
	// двойного ProgressFinished.
	for i := 0; i < 200; i++ {
		canvas := testCanvas()
		state := NewExecState(canvas)
		state.CompleteTask(canvas.Units[0].Signatures[0].TaskID, domain.StatusSuccess)

		group := canvas.Units[1].Signatures
		state.CompleteTask(group[0].TaskID, domain.StatusSuccess)

		results := make(chan Progress, 2)
		var wg sync.WaitGroup
		for _, sig := range group[1:] {
			wg.Add(1)
			go func(taskID uuid.UUID) {
				defer wg.Done()
				_, progress := state.CompleteTask(taskID, domain.StatusSuccess)
				results <- progress
			}(sig.TaskID)
		}
		wg.Wait()
		close(results)

		finishes := 0
		for progress := range results {
			switch progress {
			case ProgressFinished:
				finishes++
			case ProgressNone:
			default:
				t.Fatalf("unexpected progress %d", progress)
			}
		}
		if finishes != 1 {
			t.Fatalf("chain finished by %d callers, want exactly 1", finishes)
		}
	}
}
