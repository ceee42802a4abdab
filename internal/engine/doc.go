// Package engine собирает flow в исполняемый план.
//
// Включает:
//   - step.go      — Step (одиночная задача или параллельная группа)
//   - canvas.go    — Canvas: собранная, отправляемая цепочка единиц работы
//   - assembler.go — создание Task-записей и сборка canvas
//   - pipeline.go  — построение шагов AVC-pipeline из payload
//   - presets.go   — лестница качеств транскодирования
//
// Сборка детерминирована: одинаковый payload даёт одинаковую
// последовательность шагов. Сборка ничего не выполняет — canvas
// отправляется в очередь отдельно.
package engine
