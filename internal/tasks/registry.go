package tasks

import (
	"fmt"
	"sync"

	"github.com/jrcastro2/cds-videos/internal/engine"
)

// Registry — реестр бизнес-задач.
//
// Хранит задачи под коротким алиасом (имя шага в pipeline) и под
// квалифицированным именем типа. Наполняется на старте процесса,
// используется сборщиком (разрешение алиасов) и воркером
// (разрешение квалифицированных имён при выполнении и перезапуске).
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	byAlias  map[string]Handler
	byName   map[string]Handler
	aliasFor map[string]string // квалифицированное имя → алиас
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		byAlias:  make(map[string]Handler),
		byName:   make(map[string]Handler),
		aliasFor: make(map[string]string),
	}
}

// DefaultRegistry создаёт реестр со всеми задачами AVC-pipeline.
func DefaultRegistry(store ObjectStore, encoder *EncoderClient) *Registry {
	r := NewRegistry()
	r.Register(engine.TaskDownload, NewDownloadTask(store))
	r.Register(engine.TaskMetadataExtraction, NewExtractMetadataTask(store))
	r.Register(engine.TaskExtractFrames, NewExtractFramesTask(store, encoder))
	r.Register(engine.TaskTranscode, NewTranscodeVideoTask(store, encoder))
	return r
}

// Register регистрирует задачу под алиасом.
// Существующая регистрация с тем же алиасом перезаписывается.
func (r *Registry) Register(alias string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAlias[alias] = handler
	r.byName[handler.Name()] = handler
	r.aliasFor[handler.Name()] = alias
}

// Get возвращает задачу по алиасу или квалифицированному имени.
// Возвращает ошибку, совместимую с engine.ErrUnknownTask, при промахе.
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.byAlias[name]; ok {
		return h, nil
	}
	if h, ok := r.byName[name]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTask, name)
}

// QualifiedName разрешает алиас в квалифицированное имя типа задачи.
// Реализует engine.Resolver.
func (r *Registry) QualifiedName(name string) (string, error) {
	h, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return h.Name(), nil
}

// Alias возвращает короткий алиас для квалифицированного имени.
// Для неизвестных имён возвращает имя как есть — статусные сводки
// не должны падать на задачах из старых версий pipeline.
func (r *Registry) Alias(qualified string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if alias, ok := r.aliasFor[qualified]; ok {
		return alias
	}
	return qualified
}
