package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"pawplan/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*AMQPNotifier)(nil)

// channel is the part of *amqp.Channel the notifier uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier hands customer messages to the mailer service through a topic exchange.
// Delivery to the customer (email, SMS) is that service's job.
type AMQPNotifier struct {
	conn       *amqp.Connection
	ch         channel
	exchange   string
	routingKey string
	log        *zerolog.Logger
	mu         sync.Mutex
	now        func() time.Time
}

func NewAMQPNotifier(url, exchange, routingKey string, logger *zerolog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	n := newAMQPNotifier(ch, exchange, routingKey, logger)
	n.conn = conn
	n.log.Info().Str("exchange", exchange).Msg("amqp notifier connected")
	return n, nil
}

func newAMQPNotifier(ch channel, exchange, routingKey string, logger *zerolog.Logger) *AMQPNotifier {
	l := logger.With().Str("component", "amqp_notifier").Logger()
	return &AMQPNotifier{ch: ch, exchange: exchange, routingKey: routingKey, log: &l, now: time.Now}
}

func (n *AMQPNotifier) Name() string { return "amqp" }

func (n *AMQPNotifier) Notify(ctx context.Context, msg adapter.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.ch.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         string(msg.Kind),
		Timestamp:    n.now(),
		Headers:      amqp.Table{"audience": string(msg.Audience)},
		Body:         body,
	})
	if err != nil {
		n.log.Error().Err(err).Str("kind", string(msg.Kind)).Msg("failed to publish message")
		return err
	}
	n.log.Debug().Str("kind", string(msg.Kind)).Int("size", len(body)).Msg("message published")
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		if err := n.ch.Close(); err != nil {
			n.log.Warn().Err(err).Msg("error closing channel")
		}
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
