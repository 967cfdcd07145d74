package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// AMQPQueue implements Queue on a RabbitMQ channel with manual acks.
type AMQPQueue struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	name     string
	prefetch int
}

// DialAMQP connects to the broker and declares the durable job queue.
func DialAMQP(url, name string, prefetch int) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "queue.dial", "connect to broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "queue.dial", "open channel")
	}

	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "queue.dial", "declare queue")
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "queue.dial", "set qos")
	}

	return &AMQPQueue{conn: conn, ch: ch, name: name, prefetch: prefetch}, nil
}

func (q *AMQPQueue) Publish(ctx context.Context, jobID string) error {
	body, err := json.Marshal(Message{JobID: jobID})
	if err != nil {
		return errors.Wrap(err, "queue.publish", "marshal message")
	}
	err = q.ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "queue.publish", "publish message")
	}
	return nil
}

func (q *AMQPQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := q.ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "queue.consume", "start consumer")
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal(m.Body, &msg); err != nil || msg.JobID == "" {
					// Malformed payloads can never succeed; drop them
					// instead of redelivering forever.
					_ = m.Reject(false)
					continue
				}
				d := Delivery{
					JobID:   msg.JobID,
					Ack:     func() error { return m.Ack(false) },
					Requeue: func() error { return m.Nack(false, true) },
				}
				select {
				case out <- d:
				case <-ctx.Done():
					_ = m.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping reports broker reachability for deep health checks.
func (q *AMQPQueue) Ping(ctx context.Context) error {
	if q.conn.IsClosed() {
		return errors.Unavailable("rabbitmq")
	}
	return nil
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
