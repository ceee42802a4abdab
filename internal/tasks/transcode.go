package tasks

import (
	"context"
	"errors"
	"fmt"
)

// TranscodeVideoTask транскодирует видео в одно качество через
// encoder-сервис. На каждое качество лестницы сборщик создаёт
// отдельную задачу.
//
// Kwargs:
//   - bucket_id, key, version_id (string): файл (обязательно)
//   - preset_quality (string): целевое качество (обязательно)
type TranscodeVideoTask struct {
	store   ObjectStore
	encoder *EncoderClient
}

// NewTranscodeVideoTask создаёт TranscodeVideoTask.
func NewTranscodeVideoTask(store ObjectStore, encoder *EncoderClient) *TranscodeVideoTask {
	return &TranscodeVideoTask{store: store, encoder: encoder}
}

// Name возвращает квалифицированное имя типа задачи.
func (t *TranscodeVideoTask) Name() string {
	return "cds.tasks.TranscodeVideoTask"
}

// transcodedKey — ключ транскодированного файла для версии и качества.
func transcodedKey(versionID, quality string) string {
	return "transcoded/" + versionID + "/" + quality + ".mp4"
}

// Execute запускает транскодирование в заданное качество.
func (t *TranscodeVideoTask) Execute(ctx context.Context, kwargs map[string]any) (string, error) {
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
	quality, err := stringArg(kwargs, "preset_quality")
	if err != nil {
		return "", err
	}

	resp, err := t.encoder.Transcode(ctx, EncodeRequest{
		Bucket:        bucket,
		Key:           key,
		VersionID:     versionID,
		OutputKey:     transcodedKey(versionID, quality),
		PresetQuality: quality,
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("transcoded %s to %s (job %s)", key, quality, resp.JobID), nil
}

// Clean убирает транскодированный файл этого качества.
func (t *TranscodeVideoTask) Clean(ctx context.Context, kwargs map[string]any) error {
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
	quality, err := stringArg(kwargs, "preset_quality")
	if err != nil {
		if errors.Is(err, ErrMissingArgument) {
			return nil
		}
		return err
	}

	return t.store.Remove(ctx, bucket, transcodedKey(versionID, quality))
}
