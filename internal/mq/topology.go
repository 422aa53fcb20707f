package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns Exchange = "bakehouse.runs"
	ExchangeJobs Exchange = "bakehouse.jobs"
)

// Queues — имена очередей.
const (
	QueueRunEvents Queue = "runs.events"
	QueueJobEvents Queue = "jobs.events"
)

// Routing keys.
const (
	RoutingKeyRuns RoutingKey = "events"
	RoutingKeyJobs RoutingKey = "events"
)

// SetupTopology объявляет обменники и очереди событий.
//
// Очереди событий без DLQ: события публикуются один раз и не
// переобрабатываются.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		exchanges := []Exchange{ExchangeRuns, ExchangeJobs}
		for _, ex := range exchanges {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		bindings := []struct {
			queue      Queue
			routingKey RoutingKey
			exchange   Exchange
		}{
			{QueueRunEvents, RoutingKeyRuns, ExchangeRuns},
			{QueueJobEvents, RoutingKeyJobs, ExchangeJobs},
		}

		for _, b := range bindings {
			_, err := ch.QueueDeclare(
				string(b.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			err = ch.QueueBind(
				string(b.queue),
				string(b.routingKey),
				string(b.exchange),
				false,
				nil,
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}
