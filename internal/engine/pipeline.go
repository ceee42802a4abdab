package engine

// Короткие имена задач AVC-pipeline. Разрешаются в квалифицированные
// имена через реестр задач.
const (
	TaskMetadataExtraction = "file_video_metadata_extraction"
	TaskDownload           = "file_download"
	TaskExtractFrames      = "file_video_extract_frames"
	TaskTranscode          = "file_transcode"
)

// BuildAVCSteps строит шаги AVC-pipeline из payload flow.
//
// Построение — чистая функция payload: ветвление определяется
// присутствием известных ключей.
//
// Шаг 1: если файл уже загружен пользователем (есть "version_id"
// и нет "uri") — одиночное извлечение метаданных; иначе файл нужно
// скачать, и первый шаг — параллельная группа из извлечения метаданных
// и скачивания.
//
// Шаг 2: параллельная группа из извлечения кадров и по одной задаче
// транскодирования на каждое качество из лестницы.
func BuildAVCSteps(payload map[string]any) []Step {
	var steps []Step

	_, hasRemoteFile := payload["uri"]
	_, hasUploadedFile := payload["version_id"]

	if hasUploadedFile && !hasRemoteFile {
		steps = append(steps, Single(TaskMetadataExtraction, nil))
	} else {
		steps = append(steps, Parallel(
			TaskSpec{Name: TaskMetadataExtraction},
			TaskSpec{Name: TaskDownload},
		))
	}

	group := []TaskSpec{{Name: TaskExtractFrames}}
	for _, quality := range PresetQualities(payload) {
		group = append(group, TaskSpec{
			Name:   TaskTranscode,
			Kwargs: map[string]any{"preset_quality": quality},
		})
	}
	steps = append(steps, Parallel(group...))

	return steps
}
