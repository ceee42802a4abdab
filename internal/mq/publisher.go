package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jrcastro2/cds-videos/internal/engine"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeFlowSubmitted MessageType = "flow.submitted"
	MessageTypeTaskReady     MessageType = "task.ready"
	MessageTypeTaskCompleted MessageType = "task.completed"
	MessageTypeTaskRevoked   MessageType = "task.revoked"
	MessageTypeExecForgotten MessageType = "execution.forgotten"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// FlowSubmittedPayload — payload для сообщения об отправленном canvas.
// Canvas передаётся целиком: диспетчеру не нужен доступ к сборщику.
type FlowSubmittedPayload struct {
	Canvas *engine.Canvas `json:"canvas"`
}

// TaskReadyPayload — payload для сообщения о готовой задаче.
type TaskReadyPayload struct {
	Signature   engine.Signature `json:"signature"`
	FlowID      uuid.UUID        `json:"flow_id"`
	ExecutionID uuid.UUID        `json:"execution_id"`
}

// TaskCompletedPayload — payload для сообщения о завершённой задаче.
type TaskCompletedPayload struct {
	TaskID      uuid.UUID `json:"task_id"`
	FlowID      uuid.UUID `json:"flow_id"`
	ExecutionID uuid.UUID `json:"execution_id"`
	Status      string    `json:"status"` // SUCCESS, FAILURE или REVOKED
	Message     string    `json:"message,omitempty"`
}

// TaskRevokedPayload — payload для сигнала отмены задачи.
type TaskRevokedPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// ExecForgottenPayload — payload для сигнала сброса состояния отправки.
type ExecForgottenPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishFlowSubmitted публикует canvas отправленного flow.
// Потребитель: Dispatcher.
func (p *Publisher) PublishFlowSubmitted(ctx context.Context, canvas *engine.Canvas) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeFlowSubmitted,
		Payload:   FlowSubmittedPayload{Canvas: canvas},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeFlows, RoutingKeySubmitted, msg)
}

// PublishTaskReady публикует сигнатуру задачи, готовой к выполнению.
// Потребитель: Worker.
func (p *Publisher) PublishTaskReady(ctx context.Context, payload TaskReadyPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskReady,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyReady, msg)
}

// PublishTaskCompleted публикует событие о завершённой задаче.
// Потребитель: Dispatcher.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, payload TaskCompletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskCompleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyCompleted, msg)
}

// PublishTaskRevoked публикует сигнал отмены задачи.
// Потребитель: Dispatcher.
func (p *Publisher) PublishTaskRevoked(ctx context.Context, taskID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskRevoked,
		Payload:   TaskRevokedPayload{TaskID: taskID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyControl, msg)
}

// PublishExecForgotten публикует сигнал сброса состояния отправки.
// Потребитель: Dispatcher.
func (p *Publisher) PublishExecForgotten(ctx context.Context, executionID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeExecForgotten,
		Payload:   ExecForgottenPayload{ExecutionID: executionID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyControl, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
