// Package cli реализует инструмент командной строки cds-videos.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с flows API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления flows и просмотра статусов задач.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для flows API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ErrorResponse) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	view, err := client.GetFlow(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: cds flow show ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: create, show, run, stop, delete, restart-task
//   - task: status
//   - deposit: flow, status
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
