package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/engine"
	"github.com/jrcastro2/cds-videos/internal/mq"
	"github.com/jrcastro2/cds-videos/internal/repo"
	"github.com/jrcastro2/cds-videos/internal/tasks"
)

// memStore — in-memory TaskStore. misses имитирует запись, ещё не
// видимую из-за гонки порядка commit'ов: первые N чтений возвращают
// repo.ErrNotFound.
type memStore struct {
	mu     sync.Mutex
	tasks  map[uuid.UUID]*domain.Task
	misses map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		tasks:  make(map[uuid.UUID]*domain.Task),
		misses: make(map[uuid.UUID]int),
	}
}

func (s *memStore) put(task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.misses[id] > 0 {
		s.misses[id]--
		return nil, repo.ErrNotFound
	}
	task, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *memStore) Update(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return repo.ErrNotFound
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *memStore) status(t *testing.T, id uuid.UUID) domain.Status {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		t.Fatalf("task %s not found", id)
	}
	return task.Status
}

// stubHandler — управляемая реализация задачи.
type stubHandler struct {
	name     string
	message  string
	err      error
	executed []map[string]any
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) Execute(_ context.Context, kwargs map[string]any) (string, error) {
	h.executed = append(h.executed, kwargs)
	return h.message, h.err
}

func (h *stubHandler) Clean(_ context.Context, _ map[string]any) error { return nil }

func pendingTask(store *memStore) *domain.Task {
	task := &domain.Task{
		ID:     uuid.New(),
		FlowID: uuid.New(),
		Name:   "cds.tasks.ExtractMetadataTask",
		Status: domain.StatusPending,
	}
	store.put(task)
	return task
}

func signatureFor(task *domain.Task) engine.Signature {
	return engine.Signature{
		TaskID: task.ID,
		Name:   task.Name,
		Kwargs: map[string]any{
			"flow_id": task.FlowID.String(),
			"task_id": task.ID.String(),
		},
	}
}

func TestEffectiveTaskID_SubmittedIDWins(t *testing.T) {
	declared := uuid.New()
	backend := uuid.New()

	sig := engine.Signature{
		TaskID: backend,
		Kwargs: map[string]any{"task_id": declared.String()},
	}
	if got := EffectiveTaskID(sig); got != declared {
		t.Errorf("EffectiveTaskID = %s, want declared id %s", got, declared)
	}
}

func TestEffectiveTaskID_FallsBackToBackendID(t *testing.T) {
	backend := uuid.New()

	sig := engine.Signature{TaskID: backend, Kwargs: map[string]any{}}
	if got := EffectiveTaskID(sig); got != backend {
		t.Errorf("EffectiveTaskID = %s, want backend id %s", got, backend)
	}

	sig.Kwargs["task_id"] = "not-a-uuid"
	if got := EffectiveTaskID(sig); got != backend {
		t.Errorf("EffectiveTaskID with garbage kwargs = %s, want backend id %s", got, backend)
	}
}

func TestWrapperExecute_CommitsSuccess(t *testing.T) {
	store := newMemStore()
	task := pendingTask(store)
	wrapper := NewWrapper(store, nil, nil)
	handler := &stubHandler{name: task.Name, message: "extracted 12 fields"}

	status := wrapper.Execute(context.Background(), handler, signatureFor(task), uuid.New())

	if status != domain.StatusSuccess {
		t.Errorf("Execute returned %s, want SUCCESS", status)
	}
	stored, _ := store.Get(context.Background(), task.ID)
	if stored.Status != domain.StatusSuccess {
		t.Errorf("record status = %s, want SUCCESS", stored.Status)
	}
	if stored.Message != "extracted 12 fields" {
		t.Errorf("record message = %q", stored.Message)
	}
}

func TestWrapperExecute_CommitsFailure(t *testing.T) {
	store := newMemStore()
	task := pendingTask(store)
	wrapper := NewWrapper(store, nil, nil)
	handler := &stubHandler{name: task.Name, err: errors.New("master object missing")}

	status := wrapper.Execute(context.Background(), handler, signatureFor(task), uuid.New())

	if status != domain.StatusFailure {
		t.Errorf("Execute returned %s, want FAILURE", status)
	}
	stored, _ := store.Get(context.Background(), task.ID)
	if stored.Status != domain.StatusFailure {
		t.Errorf("record status = %s, want FAILURE", stored.Status)
	}
	if stored.Message != "master object missing" {
		t.Errorf("record message = %q", stored.Message)
	}
}

func TestCommitStatus_WaitsForRecordVisibility(t *testing.T) {
	store := newMemStore()
	task := pendingTask(store)
	store.misses[task.ID] = 2

	wrapper := NewWrapper(store, nil, nil)
	err := wrapper.CommitStatus(context.Background(), task.ID, domain.StatusSuccess, "done")
	if err != nil {
		t.Fatalf("CommitStatus despite late visibility: %v", err)
	}
	if got := store.status(t, task.ID); got != domain.StatusSuccess {
		t.Errorf("record status = %s, want SUCCESS", got)
	}
}

func TestCommitStatus_UnknownTask(t *testing.T) {
	store := newMemStore()
	wrapper := NewWrapper(store, nil, nil)

	err := wrapper.CommitStatus(context.Background(), uuid.New(), domain.StatusSuccess, "")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestStopTask_OnlyPending(t *testing.T) {
	store := newMemStore()
	wrapper := NewWrapper(store, nil, nil)

	pending := pendingTask(store)
	if err := wrapper.StopTask(context.Background(), pending.ID); err != nil {
		t.Fatalf("StopTask pending: %v", err)
	}
	if got := store.status(t, pending.ID); got != domain.StatusRevoked {
		t.Errorf("pending task status = %s, want REVOKED", got)
	}

	// Отмена завершённой работы — no-op, не ошибка.
	done := pendingTask(store)
	done.MarkSuccess("ok")
	store.put(done)
	if err := wrapper.StopTask(context.Background(), done.ID); err != nil {
		t.Fatalf("StopTask terminal: %v", err)
	}
	if got := store.status(t, done.ID); got != domain.StatusSuccess {
		t.Errorf("terminal task status = %s, want untouched SUCCESS", got)
	}

	if err := wrapper.StopTask(context.Background(), uuid.New()); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("unknown id: expected ErrTaskNotFound, got %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	store := newMemStore()
	wrapper := NewWrapper(store, nil, nil)

	task := pendingTask(store)
	task.MarkFailure("encoder rejected request")
	store.put(task)

	status, message, err := wrapper.GetStatus(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status != domain.StatusFailure || message != "encoder rejected request" {
		t.Errorf("GetStatus = (%s, %q)", status, message)
	}

	if _, _, err := wrapper.GetStatus(context.Background(), uuid.New()); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("unknown id: expected ErrTaskNotFound, got %v", err)
	}
}

func newTestWorker(store *memStore, registry *tasks.Registry) *Worker {
	return New(Config{
		Store:    store,
		Registry: registry,
	})
}

func TestProcessSignature_ExecutesPendingTask(t *testing.T) {
	store := newMemStore()
	task := pendingTask(store)

	registry := tasks.NewRegistry()
	handler := &stubHandler{name: task.Name, message: "ok"}
	registry.Register(engine.TaskMetadataExtraction, handler)

	w := newTestWorker(store, registry)
	err := w.processSignature(context.Background(), mq.TaskReadyPayload{
		Signature:   signatureFor(task),
		FlowID:      task.FlowID,
		ExecutionID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("processSignature: %v", err)
	}

	if len(handler.executed) != 1 {
		t.Fatalf("handler executed %d times, want 1", len(handler.executed))
	}
	if handler.executed[0]["task_id"] != task.ID.String() {
		t.Errorf("handler kwargs missing task_id stamp")
	}
	if got := store.status(t, task.ID); got != domain.StatusSuccess {
		t.Errorf("record status = %s, want SUCCESS", got)
	}
}

func TestProcessSignature_SkipsRevokedTask(t *testing.T) {
	store := newMemStore()
	task := pendingTask(store)
	task.MarkRevoked()
	store.put(task)

	registry := tasks.NewRegistry()
	handler := &stubHandler{name: task.Name}
	registry.Register(engine.TaskMetadataExtraction, handler)

	w := newTestWorker(store, registry)
	err := w.processSignature(context.Background(), mq.TaskReadyPayload{
		Signature: signatureFor(task),
		FlowID:    task.FlowID,
	})
	if !errors.Is(err, ErrTaskNotPending) {
		t.Fatalf("expected ErrTaskNotPending, got %v", err)
	}
	if len(handler.executed) != 0 {
		t.Error("revoked task was executed")
	}
	if got := store.status(t, task.ID); got != domain.StatusRevoked {
		t.Errorf("record status = %s, want REVOKED", got)
	}
}

func TestProcessSignature_UnknownTaskName(t *testing.T) {
	store := newMemStore()
	task := pendingTask(store)
	task.Name = "cds.tasks.NoSuchTask"
	store.put(task)

	w := newTestWorker(store, tasks.NewRegistry())
	sig := signatureFor(task)
	sig.Name = task.Name

	err := w.processSignature(context.Background(), mq.TaskReadyPayload{
		Signature: sig,
		FlowID:    task.FlowID,
	})
	if err != nil {
		t.Fatalf("processSignature: %v", err)
	}
	// Нерешаемое имя — терминальный FAILURE, не retry.
	if got := store.status(t, task.ID); got != domain.StatusFailure {
		t.Errorf("record status = %s, want FAILURE", got)
	}
}
