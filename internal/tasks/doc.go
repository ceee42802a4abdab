// Package tasks содержит бизнес-задачи AVC-pipeline и их реестр.
//
// Задачи:
//   - DownloadTask           — скачивание удалённого файла в хранилище
//   - ExtractMetadataTask    — извлечение метаданных видео
//   - ExtractFramesTask      — извлечение кадров через encoder-сервис
//   - TranscodeVideoTask     — транскодирование через encoder-сервис
//
// Каждая задача реализует Handler: Execute (выполнение) и Clean
// (идемпотентная уборка произведённых артефактов). Реестр наполняется
// на старте процесса и используется при сборке и при перезапуске.
package tasks
