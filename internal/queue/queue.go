// Package queue is the job-ready delivery channel. The broker guarantees
// at-least-once, unordered delivery; deduplication is the dispatcher's
// problem (lease + terminal-status checks), not the queue's.
package queue

import "context"

// Message is the wire payload for a job-ready notification.
type Message struct {
	JobID string `json:"job_id"`
}

// Delivery is one received notification. Exactly one of Ack or Requeue must
// be called; unacked deliveries are redelivered by the broker.
type Delivery struct {
	JobID   string
	Ack     func() error
	Requeue func() error
}

// Queue is the at-least-once delivery channel between the API and workers.
type Queue interface {
	// Publish enqueues a job-ready notification.
	Publish(ctx context.Context, jobID string) error
	// Consume returns a channel of deliveries. The channel closes when the
	// underlying connection drops or ctx is canceled.
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}
