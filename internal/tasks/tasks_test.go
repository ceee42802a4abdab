package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jrcastro2/cds-videos/internal/engine"
)

// memStore — in-memory реализация ObjectStore для тестов.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte // "bucket/key" → содержимое
	types   map[string]string // "bucket/key" → content type
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (s *memStore) objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *memStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[s.objectKey(bucket, key)] = data
	s.types[s.objectKey(bucket, key)] = contentType
	return nil
}

func (s *memStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[s.objectKey(bucket, key)]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("object not found: %s/%s", bucket, key)
	}
	return ObjectInfo{
		Size:        int64(len(data)),
		ContentType: s.types[s.objectKey(bucket, key)],
		ETag:        "test-etag",
	}, nil
}

func (s *memStore) Remove(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, s.objectKey(bucket, key))
	return nil
}

func (s *memStore) RemoveByPrefix(ctx context.Context, bucket, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix) {
			delete(s.objects, k)
		}
	}
	return nil
}

func (s *memStore) has(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[s.objectKey(bucket, key)]
	return ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// testEncoder поднимает httptest-сервер, отвечающий как encoder-сервис.
func testEncoder(t *testing.T, resp EncodeResponse) (*EncoderClient, *EncodeRequest) {
	t.Helper()

	var captured EncodeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	return NewEncoderClient(srv.URL), &captured
}

func TestRegistry_GetByAliasAndName(t *testing.T) {
	store := newMemStore()
	r := NewRegistry()
	r.Register(engine.TaskDownload, NewDownloadTask(store))

	byAlias, err := r.Get(engine.TaskDownload)
	if err != nil {
		t.Fatalf("Get(alias): %v", err)
	}
	byName, err := r.Get("cds.tasks.DownloadTask")
	if err != nil {
		t.Fatalf("Get(qualified): %v", err)
	}
	if byAlias != byName {
		t.Error("alias and qualified name resolved to different handlers")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("no_such_task")
	if !errors.Is(err, engine.ErrUnknownTask) {
		t.Errorf("err = %v, want engine.ErrUnknownTask", err)
	}
}

func TestRegistry_QualifiedName(t *testing.T) {
	r := NewRegistry()
	r.Register(engine.TaskTranscode, NewTranscodeVideoTask(newMemStore(), nil))

	name, err := r.QualifiedName(engine.TaskTranscode)
	if err != nil {
		t.Fatalf("QualifiedName: %v", err)
	}
	if name != "cds.tasks.TranscodeVideoTask" {
		t.Errorf("name = %q", name)
	}

	if _, err := r.QualifiedName("no_such_task"); !errors.Is(err, engine.ErrUnknownTask) {
		t.Errorf("err = %v, want engine.ErrUnknownTask", err)
	}
}

func TestRegistry_Alias(t *testing.T) {
	r := NewRegistry()
	r.Register(engine.TaskExtractFrames, NewExtractFramesTask(newMemStore(), nil))

	if got := r.Alias("cds.tasks.ExtractFramesTask"); got != engine.TaskExtractFrames {
		t.Errorf("Alias = %q, want %q", got, engine.TaskExtractFrames)
	}
	// Неизвестное имя возвращается как есть: сводки статусов не должны
	// падать на задачах из старых версий pipeline.
	if got := r.Alias("cds.tasks.RetiredTask"); got != "cds.tasks.RetiredTask" {
		t.Errorf("Alias(unknown) = %q", got)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(newMemStore(), NewEncoderClient("http://localhost:1"))

	for _, alias := range []string{
		engine.TaskDownload,
		engine.TaskMetadataExtraction,
		engine.TaskExtractFrames,
		engine.TaskTranscode,
	} {
		if _, err := r.Get(alias); err != nil {
			t.Errorf("Get(%q): %v", alias, err)
		}
	}
}

func TestStringArg(t *testing.T) {
	kwargs := map[string]any{
		"ok":    "value",
		"empty": "",
		"num":   42,
	}

	if v, err := stringArg(kwargs, "ok"); err != nil || v != "value" {
		t.Errorf("stringArg(ok) = %q, %v", v, err)
	}
	for _, name := range []string{"empty", "num", "missing"} {
		if _, err := stringArg(kwargs, name); !errors.Is(err, ErrMissingArgument) {
			t.Errorf("stringArg(%s): err = %v, want ErrMissingArgument", name, err)
		}
	}
}

func TestIntArg(t *testing.T) {
	kwargs := map[string]any{
		"int":    7,
		"float":  3.0, // JSON-десериализация даёт float64
		"string": "5",
	}

	if got := intArg(kwargs, "int", 99); got != 7 {
		t.Errorf("intArg(int) = %d", got)
	}
	if got := intArg(kwargs, "float", 99); got != 3 {
		t.Errorf("intArg(float) = %d", got)
	}
	if got := intArg(kwargs, "string", 99); got != 99 {
		t.Errorf("intArg(string) = %d, want fallback", got)
	}
	if got := intArg(kwargs, "missing", 99); got != 99 {
		t.Errorf("intArg(missing) = %d, want fallback", got)
	}
}

func TestDownloadTask_Execute(t *testing.T) {
	content := []byte("video bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(content)
	}))
	defer srv.Close()

	store := newMemStore()
	task := NewDownloadTask(store)

	msg, err := task.Execute(context.Background(), map[string]any{
		"uri":       srv.URL + "/test.mp4",
		"bucket_id": "b1",
		"key":       "test.mp4",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := fmt.Sprintf("downloaded test.mp4 (%d bytes)", len(content))
	if msg != want {
		t.Errorf("msg = %q, want %q", msg, want)
	}
	if !bytes.Equal(store.objects["b1/test.mp4"], content) {
		t.Error("stored content mismatch")
	}
	if store.types["b1/test.mp4"] != "video/mp4" {
		t.Errorf("content type = %q", store.types["b1/test.mp4"])
	}
}

func TestDownloadTask_ExecuteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	task := NewDownloadTask(newMemStore())
	_, err := task.Execute(context.Background(), map[string]any{
		"uri":       srv.URL + "/missing.mp4",
		"bucket_id": "b1",
		"key":       "missing.mp4",
	})
	if err == nil {
		t.Fatal("Execute succeeded on HTTP 404")
	}
}

func TestDownloadTask_ExecuteMissingArgs(t *testing.T) {
	task := NewDownloadTask(newMemStore())
	_, err := task.Execute(context.Background(), map[string]any{"uri": "http://example.com/f"})
	if !errors.Is(err, ErrMissingArgument) {
		t.Errorf("err = %v, want ErrMissingArgument", err)
	}
}

func TestDownloadTask_Clean(t *testing.T) {
	store := newMemStore()
	store.objects["b1/f.mp4"] = []byte("data")
	task := NewDownloadTask(store)

	kwargs := map[string]any{"bucket_id": "b1", "key": "f.mp4"}
	if err := task.Clean(context.Background(), kwargs); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if store.has("b1", "f.mp4") {
		t.Error("object survived Clean")
	}

	// Повторный Clean и Clean без kwargs — no-op без ошибки.
	if err := task.Clean(context.Background(), kwargs); err != nil {
		t.Errorf("second Clean: %v", err)
	}
	if err := task.Clean(context.Background(), map[string]any{}); err != nil {
		t.Errorf("Clean without kwargs: %v", err)
	}
}

func TestExtractMetadataTask_Execute(t *testing.T) {
	store := newMemStore()
	store.objects["b1/v.mp4"] = []byte("0123456789")
	store.types["b1/v.mp4"] = "video/mp4"
	task := NewExtractMetadataTask(store)

	msg, err := task.Execute(context.Background(), map[string]any{
		"bucket_id":  "b1",
		"key":        "v.mp4",
		"version_id": "ver-1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(msg), &meta); err != nil {
		t.Fatalf("message is not JSON metadata: %v", err)
	}
	if meta["size"] != float64(10) {
		t.Errorf("size = %v", meta["size"])
	}
	if meta["content_type"] != "video/mp4" {
		t.Errorf("content_type = %v", meta["content_type"])
	}
	if !store.has("b1", "meta/ver-1.json") {
		t.Error("metadata object not stored")
	}
}

func TestExtractMetadataTask_Clean(t *testing.T) {
	store := newMemStore()
	store.objects["b1/meta/ver-1.json"] = []byte("{}")
	task := NewExtractMetadataTask(store)

	if err := task.Clean(context.Background(), map[string]any{"bucket_id": "b1", "version_id": "ver-1"}); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if store.has("b1", "meta/ver-1.json") {
		t.Error("metadata object survived Clean")
	}
	if err := task.Clean(context.Background(), nil); err != nil {
		t.Errorf("Clean without kwargs: %v", err)
	}
}

func TestExtractFramesTask_Execute(t *testing.T) {
	encoder, captured := testEncoder(t, EncodeResponse{
		JobID: "job-1",
		Keys:  []string{"frames/ver-1/01.jpg", "frames/ver-1/02.jpg"},
	})
	task := NewExtractFramesTask(newMemStore(), encoder)

	msg, err := task.Execute(context.Background(), map[string]any{
		"bucket_id":  "b1",
		"key":        "v.mp4",
		"version_id": "ver-1",
		"frames_gap": float64(20),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if msg != "extracted 2 frames (job job-1)" {
		t.Errorf("msg = %q", msg)
	}
	if captured.OutputKey != "frames/ver-1/" {
		t.Errorf("output key = %q", captured.OutputKey)
	}
	if captured.FramesStart != defaultFramesStart || captured.FramesEnd != defaultFramesEnd {
		t.Errorf("frames range = %d..%d, want defaults", captured.FramesStart, captured.FramesEnd)
	}
	if captured.FramesGap != 20 {
		t.Errorf("frames gap = %d, want 20", captured.FramesGap)
	}
}

func TestExtractFramesTask_Clean(t *testing.T) {
	store := newMemStore()
	store.objects["b1/frames/ver-1/01.jpg"] = []byte("jpg")
	store.objects["b1/frames/ver-1/02.jpg"] = []byte("jpg")
	store.objects["b1/frames/ver-2/01.jpg"] = []byte("jpg")
	task := NewExtractFramesTask(store, nil)

	if err := task.Clean(context.Background(), map[string]any{"bucket_id": "b1", "version_id": "ver-1"}); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if store.count() != 1 {
		t.Errorf("objects left = %d, want only ver-2 frame", store.count())
	}
	if !store.has("b1", "frames/ver-2/01.jpg") {
		t.Error("other version's frame removed")
	}
}

func TestTranscodeVideoTask_Execute(t *testing.T) {
	encoder, captured := testEncoder(t, EncodeResponse{JobID: "job-2"})
	task := NewTranscodeVideoTask(newMemStore(), encoder)

	msg, err := task.Execute(context.Background(), map[string]any{
		"bucket_id":      "b1",
		"key":            "v.mp4",
		"version_id":     "ver-1",
		"preset_quality": "720p",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if msg != "transcoded v.mp4 to 720p (job job-2)" {
		t.Errorf("msg = %q", msg)
	}
	if captured.OutputKey != "transcoded/ver-1/720p.mp4" {
		t.Errorf("output key = %q", captured.OutputKey)
	}
	if captured.PresetQuality != "720p" {
		t.Errorf("preset quality = %q", captured.PresetQuality)
	}
}

func TestTranscodeVideoTask_Clean(t *testing.T) {
	store := newMemStore()
	store.objects["b1/transcoded/ver-1/720p.mp4"] = []byte("mp4")
	store.objects["b1/transcoded/ver-1/480p.mp4"] = []byte("mp4")
	task := NewTranscodeVideoTask(store, nil)

	kwargs := map[string]any{"bucket_id": "b1", "version_id": "ver-1", "preset_quality": "720p"}
	if err := task.Clean(context.Background(), kwargs); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if store.has("b1", "transcoded/ver-1/720p.mp4") {
		t.Error("720p rendition survived Clean")
	}
	if !store.has("b1", "transcoded/ver-1/480p.mp4") {
		t.Error("480p rendition removed by 720p Clean")
	}
}

func TestEncoderClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "encoder overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewEncoderClient(srv.URL)
	_, err := client.Transcode(context.Background(), EncodeRequest{Bucket: "b1", Key: "v.mp4"})
	if !errors.Is(err, ErrEncoderRequest) {
		t.Errorf("err = %v, want ErrEncoderRequest", err)
	}
}
