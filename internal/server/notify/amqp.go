package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the part of *amqp.Channel the notifier uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes reset events as persistent JSON messages to a
// durable queue read by the mail worker.
type AMQPNotifier struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    publisher
	queue string
}

// dialAMQP is a seam for tests.
var dialAMQP = amqp.Dial

// NewAMQPNotifier connects to url and declares queue.
func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	conn, err := dialAMQP(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue, // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, queue: queue}, nil
}

func newAMQPNotifierWithChannel(ch publisher, queue string) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, queue: queue}
}

func (n *AMQPNotifier) PasswordResetRequested(ctx context.Context, ev PasswordResetRequested) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         "password_reset_requested",
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var err error
	if n.ch != nil {
		err = n.ch.Close()
	}
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
