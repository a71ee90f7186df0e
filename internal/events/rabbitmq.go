package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "memberships"
	DefaultQueue    = "packs.period-reset"
)

// RabbitMQConfig configures the payment consumer.
type RabbitMQConfig struct {
	URL            string
	Exchange       string
	Queue          string
	ReconnectDelay time.Duration
}

// RabbitMQConsumer resets download periods from payment messages.
type RabbitMQConsumer struct {
	cfg     RabbitMQConfig
	handler PaymentHandler
	logger  *slog.Logger
}

// NewRabbitMQConsumer creates a consumer. It does not connect until Run.
func NewRabbitMQConsumer(cfg RabbitMQConfig, handler PaymentHandler, logger *slog.Logger) *RabbitMQConsumer {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &RabbitMQConsumer{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "rabbitmq_consumer", "queue", cfg.Queue),
	}
}

// Run consumes until ctx is cancelled, reconnecting after broker errors.
func (c *RabbitMQConsumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error("consumer stopped, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *RabbitMQConsumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(c.cfg.Queue, RoutingKeyPaymentRecorded, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consuming payment events", "exchange", c.cfg.Exchange)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.deliver(ctx, msg)
		}
	}
}

// deliver hands one message to the handler. Malformed bodies are acked
// and dropped; handler errors are requeued.
func (c *RabbitMQConsumer) deliver(ctx context.Context, msg amqp.Delivery) {
	event, err := DecodePayment(msg.Body, SourceRabbitMQ)
	if err != nil {
		c.logger.Error("discarding malformed payment event", "routing_key", msg.RoutingKey, "error", err)
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	if err := c.handler.OnPaymentRecorded(ctx, event); err != nil {
		c.logger.Error("payment event failed",
			"payment_id", event.PaymentID,
			"user_id", event.UserID,
			"error", err,
		)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("failed to ack message", "error", ackErr)
	}
}
