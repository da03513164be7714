// Package messaging publishes settlement events to downstream consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"artmarket-wallet/config"
	"artmarket-wallet/internal/core/domain"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQPublisher implements ports.EventPublisher on a topic exchange.
// The routing key is the event's RoutingKey.
type RabbitMQPublisher struct {
	channel  Channel
	exchange string
	log      zerolog.Logger
}

// NewRabbitMQPublisher creates a publisher on an open channel.
func NewRabbitMQPublisher(ch Channel, exchange string, log zerolog.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{channel: ch, exchange: exchange, log: log}
}

// Publish sends the event as a persistent JSON message.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		event.RoutingKey(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    event.OccurredAt,
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.log.Debug().Str("routing_key", event.RoutingKey()).Msg("event published")
	return nil
}

// Dial opens a connection and a channel and declares the durable topic exchange.
// The caller closes the returned connection.
func Dial(cfg config.BrokerConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Properties: amqp.Table{"connection_name": "artmarket-wallet"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open broker channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return conn, ch, nil
}

// LogPublisher writes events to the log. It stands in when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	p.log.Info().
		Str("event", string(event.Type)).
		Str("user_id", string(event.UserID)).
		Int64("amount", event.Amount).
		Msg("settlement event")
	return nil
}
