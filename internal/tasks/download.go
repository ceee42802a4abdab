package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const downloadTimeout = 30 * time.Minute

// DownloadTask скачивает удалённый файл в объектное хранилище.
//
// Kwargs:
//   - uri (string): откуда скачивать (обязательно)
//   - bucket_id (string): целевой bucket (обязательно)
//   - key (string): имя файла в bucket (обязательно)
type DownloadTask struct {
	store  ObjectStore
	client *http.Client
}

// NewDownloadTask создаёт DownloadTask.
func NewDownloadTask(store ObjectStore) *DownloadTask {
	return &DownloadTask{
		store:  store,
		client: &http.Client{Timeout: downloadTimeout},
	}
}

// Name возвращает квалифицированное имя типа задачи.
func (t *DownloadTask) Name() string {
	return "cds.tasks.DownloadTask"
}

// Execute скачивает файл по uri и кладёт его в bucket под key.
func (t *DownloadTask) Execute(ctx context.Context, kwargs map[string]any) (string, error) {
	uri, err := stringArg(kwargs, "uri")
	if err != nil {
		return "", err
	}
	bucket, err := stringArg(kwargs, "bucket_id")
	if err != nil {
		return "", err
	}
	key, err := stringArg(kwargs, "key")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("download %s: HTTP %d", uri, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// ContentLength может быть -1 (chunked) — хранилище это принимает
	if err := t.store.Put(ctx, bucket, key, resp.Body, resp.ContentLength, contentType); err != nil {
		return "", fmt.Errorf("store %s/%s: %w", bucket, key, err)
	}

	info, err := t.store.Stat(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	return fmt.Sprintf("downloaded %s (%d bytes)", key, info.Size), nil
}

// Clean убирает скачанный файл. Отсутствующий объект — не ошибка.
func (t *DownloadTask) Clean(ctx context.Context, kwargs map[string]any) error {
	bucket, err := stringArg(kwargs, "bucket_id")
	if err != nil {
		// Bucket так и не был назначен — скачивать было некуда,
		// убирать нечего
		if errors.Is(err, ErrMissingArgument) {
			return nil
		}
		return err
	}
	key, err := stringArg(kwargs, "key")
	if err != nil {
		if errors.Is(err, ErrMissingArgument) {
			return nil
		}
		return err
	}

	return t.store.Remove(ctx, bucket, key)
}
