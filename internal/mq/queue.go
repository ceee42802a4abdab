package mq

import (
	"context"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/engine"
	"github.com/jrcastro2/cds-videos/internal/telemetry"
)

// ExecutionQueue — адаптер очереди выполнения поверх RabbitMQ.
// Реализует flows.ExecutionQueue.
//
// Submit публикует canvas целиком; реальную раздачу задач воркерам
// и продвижение цепочки выполняет Dispatcher, потребляющий
// flows.submitted и tasks.completed. Forget — контрольный сигнал,
// best-effort по построению. Отмена отдельных задач идёт не через
// очередь, а через worker.Wrapper.StopTask.
type ExecutionQueue struct {
	publisher *Publisher
}

// NewExecutionQueue создаёт адаптер поверх publisher.
func NewExecutionQueue(publisher *Publisher) *ExecutionQueue {
	return &ExecutionQueue{publisher: publisher}
}

// Submit публикует canvas flow в обменник cds.flows.
func (q *ExecutionQueue) Submit(ctx context.Context, canvas *engine.Canvas) error {
	if err := q.publisher.PublishFlowSubmitted(ctx, canvas); err != nil {
		return err
	}
	telemetry.FlowSubmissions.Inc()
	return nil
}

// Forget публикует сигнал сброса состояния отправки.
func (q *ExecutionQueue) Forget(ctx context.Context, executionID uuid.UUID) error {
	return q.publisher.PublishExecForgotten(ctx, executionID)
}
