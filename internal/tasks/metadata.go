package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ExtractMetadataTask извлекает метаданные видеофайла и сохраняет
// их JSON-объектом рядом с файлом.
//
// Kwargs:
//   - bucket_id (string): bucket с файлом (обязательно)
//   - key (string): имя файла (обязательно)
//   - version_id (string): версия объекта (обязательно)
type ExtractMetadataTask struct {
	store ObjectStore
}

// NewExtractMetadataTask создаёт ExtractMetadataTask.
func NewExtractMetadataTask(store ObjectStore) *ExtractMetadataTask {
	return &ExtractMetadataTask{store: store}
}

// Name возвращает квалифицированное имя типа задачи.
func (t *ExtractMetadataTask) Name() string {
	return "cds.tasks.ExtractMetadataTask"
}

// metadataKey — ключ JSON-объекта с метаданными для версии.
func metadataKey(versionID string) string {
	return "meta/" + versionID + ".json"
}

// Execute читает атрибуты файла и записывает метаданные в хранилище.
func (t *ExtractMetadataTask) Execute(ctx context.Context, kwargs map[string]any) (string, error) {
	bucket, err := stringArg(kwargs, "bucket_id")
	if err != nil {
		return "", err
	}
	key, err := stringArg(kwargs, "key")
	if err != nil {
		return "", err
	}
	versionID, err := stringArg(kwargs, "version_id")
	if err != nil {
		return "", err
	}

	info, err := t.store.Stat(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	metadata := map[string]any{
		"key":          key,
		"version_id":   versionID,
		"size":         info.Size,
		"content_type": info.ContentType,
		"etag":         info.ETag,
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	metaKey := metadataKey(versionID)
	if err := t.store.Put(ctx, bucket, metaKey, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return "", fmt.Errorf("store metadata %s/%s: %w", bucket, metaKey, err)
	}

	return string(payload), nil
}

// Clean убирает объект с метаданными.
func (t *ExtractMetadataTask) Clean(ctx context.Context, kwargs map[string]any) error {
	bucket, err := stringArg(kwargs, "bucket_id")
	if err != nil {
		if errors.Is(err, ErrMissingArgument) {
			return nil
		}
		return err
	}
	versionID, err := stringArg(kwargs, "version_id")
	if err != nil {
		if errors.Is(err, ErrMissingArgument) {
			return nil
		}
		return err
	}

	return t.store.Remove(ctx, bucket, metadataKey(versionID))
}
