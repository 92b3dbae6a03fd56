package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"wa-gateway/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer implements ports.SendConsumer using RabbitMQ.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *slog.Logger
}

// NewConsumer dials RabbitMQ, declares topology, and returns a Consumer.
func NewConsumer(amqpURL string, log *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// One unacknowledged delivery per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, channel: ch, log: log}, nil
}

// Consume registers a consumer on the queue and calls handler for each delivery.
// Sends are single-shot: a handler error drops the delivery instead of
// requeueing it. It blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, req domain.SendRequest) error) error {
	deliveries, err := c.channel.Consume(
		queueName,
		"",    // auto-generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.handle(ctx, d, handler)
		}
	}
}

// handle acks a delivery whose handler succeeded and drops everything else.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler func(ctx context.Context, req domain.SendRequest) error) {
	req, err := decodeSendRequest(d.Body)
	if err != nil {
		c.log.Error("decode send request", "err", err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, req); err != nil {
		c.log.Error("send failed", "send_id", req.ID, "instance_id", req.InstanceID, "err", err)
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

// Close cleanly shuts down the channel and connection.
func (c *Consumer) Close() {
	c.channel.Close()
	c.conn.Close()
}
