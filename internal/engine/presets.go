package engine

// defaultPresetQualities — лестница качеств транскодирования,
// используемая когда payload не задаёт свою.
var defaultPresetQualities = []string{"360p", "480p", "720p", "1080p"}

// PresetQualities возвращает список качеств транскодирования для payload.
//
// Payload может переопределить лестницу ключом "preset_qualities"
// (список строк). Результат детерминирован для одинакового payload.
func PresetQualities(payload map[string]any) []string {
	raw, ok := payload["preset_qualities"]
	if !ok {
		return defaultPresetQualities
	}

	list, ok := raw.([]any)
	if !ok {
		// Уже типизированный список (например, из кода, а не из JSON)
		if typed, ok := raw.([]string); ok && len(typed) > 0 {
			return typed
		}
		return defaultPresetQualities
	}

	qualities := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			qualities = append(qualities, s)
		}
	}
	if len(qualities) == 0 {
		return defaultPresetQualities
	}
	return qualities
}
