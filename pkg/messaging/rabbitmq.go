package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("rabbitmq connection closed")

// RabbitMQ owns one connection and one channel to the broker. Publishing goes
// through the connection so that every publisher shares the channel lock and
// picks up a new channel after a reconnect.
type RabbitMQ struct {
	cfg    *config.RabbitMQConfig
	logger *logger.Logger

	mu        sync.RWMutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	closed    bool
	reconnect chan struct{}

	publishMu sync.Mutex
}

// New dials the broker and starts watching the connection
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		cfg:       cfg,
		logger:    log.WithComponent("rabbitmq"),
		reconnect: make(chan struct{}),
	}

	if err := r.dial(); err != nil {
		return nil, err
	}

	go r.watch()
	return r, nil
}

func (r *RabbitMQ) dial() error {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if r.cfg.PrefetchCount > 0 {
		if err := ch.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	r.mu.Lock()
	r.conn = conn
	r.channel = ch
	r.mu.Unlock()

	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

// watch redials whenever the broker drops the connection and wakes everyone
// waiting in Reconnected.
func (r *RabbitMQ) watch() {
	for {
		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		amqpErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if r.isClosed() {
			return
		}
		if ok && amqpErr != nil {
			r.logger.Warn().Str("reason", amqpErr.Reason).Int("code", amqpErr.Code).Msg("RabbitMQ connection lost")
		}

		if err := r.redial(); err != nil {
			r.logger.Error().Err(err).Msg("giving up on RabbitMQ")
			return
		}

		r.mu.Lock()
		close(r.reconnect)
		r.reconnect = make(chan struct{})
		r.mu.Unlock()
	}
}

func (r *RabbitMQ) redial() error {
	attempts := r.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	for i := 1; i <= attempts; i++ {
		if r.isClosed() {
			return ErrClosed
		}
		time.Sleep(r.cfg.ReconnectDelay)

		if err := r.dial(); err != nil {
			r.logger.Warn().Err(err).Int("attempt", i).Msg("reconnection attempt failed")
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to reconnect after %d attempts", attempts)
}

// Reconnected returns a channel closed after the next successful reconnect
func (r *RabbitMQ) Reconnected() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reconnect
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Publish sends one message on the shared channel
func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if r.isClosed() {
		return ErrClosed
	}

	// amqp channels are not safe for concurrent publishing
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	return r.Channel().PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

// Close closes the channel and the connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports whether the connection is open
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

// DeclareQueue declares a durable queue that dead-letters into ExchangeDeadLetter
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.Channel().QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": ExchangeDeadLetter,
	})
}

// DeclareDeadLetterQueue declares the dead letter exchange and the
// dlq.<service> queue collecting everything rejected by that service.
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	ch := r.Channel()
	if err := ch.ExchangeDeclare(ExchangeDeadLetter, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	queueName := "dlq." + serviceName
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}
	if err := ch.QueueBind(queueName, "#", ExchangeDeadLetter, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}
	return nil
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	return r.Channel().QueueBind(queueName, routingKey, exchange, false, nil)
}
