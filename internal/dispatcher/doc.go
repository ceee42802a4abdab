// Package dispatcher продвигает выполнение отправленных canvas.
//
// Dispatcher отвечает за:
//   - Получение canvas из очереди flows.submitted
//   - Раздачу сигнатур текущего звена воркерам через tasks.ready
//   - Отслеживание завершения задач через tasks.completed
//   - Продвижение цепочки: следующее звено уходит воркерам, только
//     когда все задачи текущего звена завершились успешно
//   - Остановку цепочки при FAILURE/REVOKED (уже розданные задачи
//     звена доигрывают, следующие звенья не раздаются)
//   - Обработку контрольных сигналов (task.revoked, execution.forgotten)
//   - Периодический sweep: повторная раздача зависших задач и
//     подхват потерянных событий завершения из БД
//
// Состояние выполнения держится в памяти (ExecState) и при потере
// восстанавливается из Task-записей.
package dispatcher
