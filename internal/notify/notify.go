// Package notify publishes job status transitions on a Redis pub/sub
// channel so interested frontends can follow progress without polling.
// Notification delivery is best-effort and never affects job state.
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
)

// Event is the published payload.
type Event struct {
	JobID    string       `json:"job_id"`
	Status   model.Status `json:"status"`
	Progress int          `json:"progress"`
}

// Notifier publishes job events. A nil *Notifier is valid and silently
// drops events, so callers never need to branch on configuration.
type Notifier struct {
	client  *redis.Client
	channel string
}

// New creates a Notifier, or nil when addr is empty (notifications off).
func New(addr, channel string) *Notifier {
	if addr == "" {
		return nil
	}
	return &Notifier{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// Publish sends one event. Errors are returned for logging but callers are
// expected to treat them as non-fatal.
func (n *Notifier) Publish(ctx context.Context, jobID string, status model.Status, progress int) error {
	if n == nil {
		return nil
	}
	payload, err := json.Marshal(Event{JobID: jobID, Status: status, Progress: progress})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Ping verifies the redis connection, for deep health checks.
func (n *Notifier) Ping(ctx context.Context) error {
	if n == nil {
		return nil
	}
	return n.client.Ping(ctx).Err()
}

// Close releases the redis connection.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	return n.client.Close()
}
