package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxDeliveries is how many times a failing event is handled before it is
// dead-lettered.
const MaxDeliveries = 3

// RetryHeader carries the number of failed deliveries of a message
const RetryHeader = "x-retry-count"

// MessageHandler handles one event. Returning an error retries the event
// unless it is wrapped with Permanent.
type MessageHandler func(ctx context.Context, event *Event) error

// PermanentError marks a handler failure that no redelivery can fix
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer dead-letters the event instead of
// retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// retrier puts a failed message back on its queue with a bumped retry count
type retrier interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
}

// Consumer dispatches events from one queue to handlers by event type
type Consumer struct {
	rmq       *RabbitMQ
	retry     retrier
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer declares the queue and returns a consumer for it
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		retry:     rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log.WithComponent("consumer"),
	}, nil
}

// Subscribe binds the queue to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")
	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start begins consuming in the background until ctx is done. Consumption
// resumes after the connection is re-established.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			c.drain(ctx, msgs)
			if ctx.Err() != nil {
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			}

			c.logger.Warn().Str("queue", c.queueName).Msg("delivery channel closed, waiting for reconnect")
			select {
			case <-ctx.Done():
				return
			case <-c.rmq.Reconnected():
			}

			if msgs, err = c.consume(); err != nil {
				c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to resume consuming")
				return
			}
		}
	}()

	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.rmq.Channel().Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("queue", c.queueName).Msg("dead-lettering malformed message")
		msg.Reject(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	log := c.logger.WithCorrelationID(event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		log.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		msg.Ack(false)
		return
	}

	err := handler(ctx, &event)
	if err == nil {
		msg.Ack(false)
		return
	}

	var permanent *PermanentError
	if errors.As(err, &permanent) {
		log.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("dead-lettering event")
		msg.Reject(false)
		return
	}

	attempt := RetryCount(msg) + 1
	if attempt >= MaxDeliveries {
		log.Error().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Int("attempts", attempt).
			Msg("max deliveries reached, dead-lettering event")
		msg.Reject(false)
		return
	}

	log.Warn().Err(err).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("attempt", attempt).
		Msg("event failed, scheduling retry")

	if err := c.retry.Publish(ctx, "", c.queueName, retryPublishing(msg, attempt)); err != nil {
		// the broker still has the original, so let it redeliver
		log.Error().Err(err).Msg("failed to republish event for retry")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

func retryPublishing(msg amqp.Delivery, attempt int) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[RetryHeader] = int32(attempt)

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationId,
		MessageId:     msg.MessageId,
		Timestamp:     time.Now().UTC(),
		Type:          msg.Type,
		Body:          msg.Body,
	}
}

// RetryCount returns how many deliveries of msg have already failed
func RetryCount(msg amqp.Delivery) int {
	switch v := msg.Headers[RetryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
