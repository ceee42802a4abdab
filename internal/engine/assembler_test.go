package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
)

type memTaskStore struct {
	tasks []domain.Task
}

func (s *memTaskStore) Create(_ context.Context, task *domain.Task) error {
	s.tasks = append(s.tasks, *task)
	return nil
}

func (s *memTaskStore) ListByFlow(_ context.Context, flowID uuid.UUID) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range s.tasks {
		if t.FlowID == flowID {
			out = append(out, t)
		}
	}
	return out, nil
}

type stubResolver struct{}

func (stubResolver) QualifiedName(name string) (string, error) {
	switch name {
	case TaskMetadataExtraction:
		return "cds.tasks.ExtractMetadataTask", nil
	case TaskDownload:
		return "cds.tasks.DownloadTask", nil
	case TaskExtractFrames:
		return "cds.tasks.ExtractFramesTask", nil
	case TaskTranscode:
		return "cds.tasks.TranscodeVideoTask", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTask, name)
}

func testFlow(payload map[string]any) *domain.Flow {
	return &domain.Flow{
		ID:        uuid.New(),
		Name:      "AVCWorkflow",
		DepositID: "dep-1",
		Payload:   payload,
	}
}

func TestAssemble_ChainShape(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{
		"uri":              "https://example.org/video.mp4",
		"preset_qualities": []any{"480p", "720p"},
	})

	canvas, err := a.Assemble(context.Background(), flow, BuildAVCSteps(flow.Payload))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(canvas.Units) != 2 {
		t.Fatalf("units = %d, want 2", len(canvas.Units))
	}
	// Удалённый файл: первый шаг — metadata + download
	if got := len(canvas.Units[0].Signatures); got != 2 {
		t.Errorf("first unit size = %d, want 2", got)
	}
	if !canvas.Units[0].Group {
		t.Error("first unit should be a group")
	}
	// Второй шаг: frames + transcode на каждое качество
	if got := len(canvas.Units[1].Signatures); got != 3 {
		t.Errorf("second unit size = %d, want 3", got)
	}

	if len(store.tasks) != 5 {
		t.Fatalf("created tasks = %d, want 5", len(store.tasks))
	}
	for _, task := range store.tasks {
		if task.Status != domain.StatusPending {
			t.Errorf("task %s status = %s, want PENDING", task.Name, task.Status)
		}
	}
}

func TestAssemble_UploadedFileSkipsDownload(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{"version_id": "v-1"})

	canvas, err := a.Assemble(context.Background(), flow, BuildAVCSteps(flow.Payload))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(canvas.Units[0].Signatures) != 1 {
		t.Fatalf("first unit size = %d, want 1", len(canvas.Units[0].Signatures))
	}
	if canvas.Units[0].Group {
		t.Error("single metadata step should not be a group")
	}
	for _, task := range store.tasks {
		if task.Name == "cds.tasks.DownloadTask" {
			t.Error("download task should not be created for uploaded file")
		}
	}
}

func TestAssemble_KwargsSnapshot(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{
		"uri":  "https://example.org/video.mp4",
		"key":  "video.mp4",
		"flow": map[string]any{"self": true},
	})

	canvas, err := a.Assemble(context.Background(), flow, BuildAVCSteps(flow.Payload))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	for _, sig := range canvas.Units[1].Signatures {
		if sig.Kwargs["flow_id"] != flow.ID.String() {
			t.Errorf("kwargs flow_id = %v, want %s", sig.Kwargs["flow_id"], flow.ID)
		}
		if sig.Kwargs["task_id"] != sig.TaskID.String() {
			t.Errorf("kwargs task_id = %v, want %s", sig.Kwargs["task_id"], sig.TaskID)
		}
		if _, ok := sig.Kwargs["flow"]; ok {
			t.Error("kwargs should not embed the flow key")
		}
		if sig.Kwargs["key"] != "video.mp4" {
			t.Errorf("kwargs key = %v, want video.mp4", sig.Kwargs["key"])
		}
	}

	// Снимок глубокий: поздняя мутация payload не видна задаче
	flow.Payload["key"] = "renamed.mp4"
	if got := canvas.Units[0].Signatures[0].Kwargs["key"]; got != "video.mp4" {
		t.Errorf("kwargs key after payload mutation = %v, want video.mp4", got)
	}
}

func TestAssemble_StepKwargsWinOverPayload(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{
		"uri":            "https://example.org/video.mp4",
		"preset_quality": "original",
	})

	canvas, err := a.Assemble(context.Background(), flow, BuildAVCSteps(flow.Payload))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	var checked int
	for _, sig := range canvas.Units[1].Signatures {
		if sig.Name != "cds.tasks.TranscodeVideoTask" {
			continue
		}
		if got := sig.Kwargs["preset_quality"]; got == "original" {
			t.Error("step kwargs should override the flow payload")
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("no transcode signatures found")
	}
}

func TestAssemble_Twice(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{"uri": "https://example.org/video.mp4"})
	steps := BuildAVCSteps(flow.Payload)

	if _, err := a.Assemble(context.Background(), flow, steps); err != nil {
		t.Fatalf("first Assemble: %v", err)
	}
	created := len(store.tasks)

	_, err := a.Assemble(context.Background(), flow, steps)
	if !errors.Is(err, ErrAlreadyAssembled) {
		t.Fatalf("second Assemble error = %v, want ErrAlreadyAssembled", err)
	}
	if len(store.tasks) != created {
		t.Errorf("task count changed on repeated assemble: %d -> %d", created, len(store.tasks))
	}
}

func TestAssemble_UnknownTask(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{})
	steps := []Step{Single("no_such_task", nil)}

	_, err := a.Assemble(context.Background(), flow, steps)
	if !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("error = %v, want ErrUnknownTask", err)
	}
}

func TestAssemble_InvalidStep(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{})
	steps := []Step{{}}

	_, err := a.Assemble(context.Background(), flow, steps)
	if !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("error = %v, want ErrInvalidStep", err)
	}
}

func TestRebuild_RoundTrip(t *testing.T) {
	store := &memTaskStore{}
	a := NewAssembler(stubResolver{}, store)

	flow := testFlow(map[string]any{"uri": "https://example.org/video.mp4"})

	original, err := a.Assemble(context.Background(), flow, BuildAVCSteps(flow.Payload))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	records, err := store.ListByFlow(context.Background(), flow.ID)
	if err != nil {
		t.Fatalf("ListByFlow: %v", err)
	}

	rebuilt, err := Rebuild(flow.ID, records)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if rebuilt.ID == original.ID {
		t.Error("rebuilt canvas should get a new submission id")
	}
	if len(rebuilt.Units) != len(original.Units) {
		t.Fatalf("rebuilt units = %d, want %d", len(rebuilt.Units), len(original.Units))
	}
	for i := range original.Units {
		if len(rebuilt.Units[i].Signatures) != len(original.Units[i].Signatures) {
			t.Errorf("unit %d size = %d, want %d",
				i, len(rebuilt.Units[i].Signatures), len(original.Units[i].Signatures))
		}
		if rebuilt.Units[i].Group != original.Units[i].Group {
			t.Errorf("unit %d group = %v, want %v",
				i, rebuilt.Units[i].Group, original.Units[i].Group)
		}
	}

	wantIDs := original.TaskIDs()
	gotIDs := rebuilt.TaskIDs()
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("task id %d = %s, want %s", i, gotIDs[i], wantIDs[i])
		}
	}
}

func TestRebuild_InterleavedRows(t *testing.T) {
	// created_at в БД хранится с точностью до микросекунды: при
	// совпадении меток строки соседних звеньев могут перемешаться.
	// Звено определяется набором предшественников и не должно
	// дробиться.
	flowID := uuid.New()
	first := []domain.Task{
		{ID: uuid.New(), FlowID: flowID, Name: "cds.tasks.ExtractFramesTask"},
		{ID: uuid.New(), FlowID: flowID, Name: "cds.tasks.TranscodeVideoTask"},
	}
	previous := []uuid.UUID{first[0].ID, first[1].ID}
	second := []domain.Task{
		{ID: uuid.New(), FlowID: flowID, Name: "cds.tasks.ExtractMetadataTask", Previous: previous},
		{ID: uuid.New(), FlowID: flowID, Name: "cds.tasks.ExtractMetadataTask", Previous: previous},
	}

	interleaved := []domain.Task{first[0], second[0], first[1], second[1]}

	canvas, err := Rebuild(flowID, interleaved)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if len(canvas.Units) != 2 {
		t.Fatalf("units = %d, want 2", len(canvas.Units))
	}
	if len(canvas.Units[0].Signatures) != 2 || !canvas.Units[0].Group {
		t.Errorf("first unit fragmented: %d signatures, group=%v",
			len(canvas.Units[0].Signatures), canvas.Units[0].Group)
	}
	if len(canvas.Units[1].Signatures) != 2 || !canvas.Units[1].Group {
		t.Errorf("second unit fragmented: %d signatures, group=%v",
			len(canvas.Units[1].Signatures), canvas.Units[1].Group)
	}
	for i, task := range second {
		if canvas.Units[1].Signatures[i].TaskID != task.ID {
			t.Errorf("second unit signature %d = %s, want %s",
				i, canvas.Units[1].Signatures[i].TaskID, task.ID)
		}
	}
}

func TestRebuild_Empty(t *testing.T) {
	_, err := Rebuild(uuid.New(), nil)
	if !errors.Is(err, ErrEmptyCanvas) {
		t.Fatalf("error = %v, want ErrEmptyCanvas", err)
	}
}

func TestPresetQualities(t *testing.T) {
	if got := PresetQualities(map[string]any{}); len(got) != 4 {
		t.Errorf("default ladder size = %d, want 4", len(got))
	}

	payload := map[string]any{"preset_qualities": []any{"480p", 42, "720p"}}
	got := PresetQualities(payload)
	if len(got) != 2 || got[0] != "480p" || got[1] != "720p" {
		t.Errorf("qualities = %v, want [480p 720p]", got)
	}

	payload = map[string]any{"preset_qualities": []any{}}
	if got := PresetQualities(payload); len(got) != 4 {
		t.Errorf("empty override should fall back to default, got %v", got)
	}
}
