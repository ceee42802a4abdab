package tasks

import (
	"context"
	"errors"
	"fmt"
)

// Значения по умолчанию для извлечения кадров: позиции в процентах
// длительности видео.
const (
	defaultFramesStart = 5
	defaultFramesEnd   = 95
	defaultFramesGap   = 10
)

// ExtractFramesTask извлекает кадры видео через encoder-сервис.
//
// Kwargs:
//   - bucket_id, key, version_id (string): файл (обязательно)
//   - frames_start, frames_end, frames_gap (int): позиции кадров
//     в процентах длительности; по умолчанию 5/95/10
type ExtractFramesTask struct {
	store   ObjectStore
	encoder *EncoderClient
}

// NewExtractFramesTask создаёт ExtractFramesTask.
func NewExtractFramesTask(store ObjectStore, encoder *EncoderClient) *ExtractFramesTask {
	return &ExtractFramesTask{store: store, encoder: encoder}
}

// Name возвращает квалифицированное имя типа задачи.
func (t *ExtractFramesTask) Name() string {
	return "cds.tasks.ExtractFramesTask"
}

// framesPrefix — префикс объектов с кадрами для версии.
func framesPrefix(versionID string) string {
	return "frames/" + versionID + "/"
}

// Execute запускает извлечение кадров.
func (t *ExtractFramesTask) Execute(ctx context.Context, kwargs map[string]any) (string, error) {
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

	resp, err := t.encoder.ExtractFrames(ctx, EncodeRequest{
		Bucket:      bucket,
		Key:         key,
		VersionID:   versionID,
		OutputKey:   framesPrefix(versionID),
		FramesStart: intArg(kwargs, "frames_start", defaultFramesStart),
		FramesEnd:   intArg(kwargs, "frames_end", defaultFramesEnd),
		FramesGap:   intArg(kwargs, "frames_gap", defaultFramesGap),
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("extracted %d frames (job %s)", len(resp.Keys), resp.JobID), nil
}

// Clean убирает все объекты с кадрами этой версии.
func (t *ExtractFramesTask) Clean(ctx context.Context, kwargs map[string]any) error {
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

	return t.store.RemoveByPrefix(ctx, bucket, framesPrefix(versionID))
}
