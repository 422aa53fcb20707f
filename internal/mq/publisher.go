package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// MessageType — тип события.
type MessageType string

// Типы событий жизненного цикла.
const (
	MessageTypeRunStarted  MessageType = "run.started"
	MessageTypeRunFinished MessageType = "run.finished"
	MessageTypeJobFinished MessageType = "job.finished"
)

// Publisher публикует события жизненного цикла runs в RabbitMQ.
// Реализует orchestrator.EventPublisher.
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

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор события.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunEventPayload — payload событий run.started и run.finished.
type RunEventPayload struct {
	RunID    uuid.UUID        `json:"run_id"`
	Pipeline string           `json:"pipeline"`
	Source   domain.RunSource `json:"source"`
	Status   domain.RunStatus `json:"status"`
	Error    string           `json:"error,omitempty"`
}

// JobEventPayload — payload события job.finished.
type JobEventPayload struct {
	RunID       uuid.UUID          `json:"run_id"`
	Job         string             `json:"job"`
	Stage       string             `json:"stage"`
	Status      domain.JobStatus   `json:"status"`
	Allowed     bool               `json:"allowed,omitempty"`
	ExitCode    int                `json:"exit_code,omitempty"`
	FailureKind domain.FailureKind `json:"failure_kind,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Publish публикует событие в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // событие переживёт рестарт RabbitMQ
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

// PublishRunStarted публикует событие о начале run.
func (p *Publisher) PublishRunStarted(ctx context.Context, run *domain.Run) error {
	return p.publishRunEvent(ctx, MessageTypeRunStarted, run)
}

// PublishRunFinished публикует событие о завершении run.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.Run) error {
	return p.publishRunEvent(ctx, MessageTypeRunFinished, run)
}

// PublishJobFinished публикует событие о терминальном статусе job.
func (p *Publisher) PublishJobFinished(ctx context.Context, run *domain.Run, res *domain.JobResult) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeJobFinished,
		Payload: JobEventPayload{
			RunID:       run.ID,
			Job:         res.Job,
			Stage:       res.Stage,
			Status:      res.Status,
			Allowed:     res.Allowed,
			ExitCode:    res.ExitCode,
			FailureKind: res.FailureKind,
			Error:       res.Error,
		},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyJobs, msg)
}

func (p *Publisher) publishRunEvent(ctx context.Context, msgType MessageType, run *domain.Run) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: msgType,
		Payload: RunEventPayload{
			RunID:    run.ID,
			Pipeline: run.Pipeline,
			Source:   run.Source,
			Status:   run.Status,
			Error:    run.Error,
		},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyRuns, msg)
}
