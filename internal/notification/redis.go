package notification

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// envelope wraps every published event with its type so subscribers can
// dispatch without sniffing fields.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	eventTypeSeriesAssigned   = "series.assigned"
	eventTypeSessionCompleted = "session.completed"
)

// redisNotifier publishes events to a Redis channel.
type redisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a Notifier publishing to the given channel.
func NewRedisNotifier(client *redis.Client, channel string) Notifier {
	return &redisNotifier{client: client, channel: channel}
}

func (n *redisNotifier) SeriesAssigned(ctx context.Context, event SeriesAssignedEvent) error {
	return n.publish(ctx, eventTypeSeriesAssigned, event)
}

func (n *redisNotifier) SessionCompleted(ctx context.Context, event SessionCompletedEvent) error {
	return n.publish(ctx, eventTypeSessionCompleted, event)
}

func (n *redisNotifier) publish(ctx context.Context, eventType string, payload any) error {
	raw, err := json.Marshal(envelope{Type: eventType, Payload: payload})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, raw).Err()
}
