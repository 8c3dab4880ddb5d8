package relay

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"rendition/internal/services"
)

// Message is the wire shape delivered to a user's private channel. Result
// fields are flattened into the completion message.
type Message struct {
	Event         string   `json:"event"`
	JobID         string   `json:"jobId"`
	QueueName     string   `json:"queueName"`
	Progress      *float64 `json:"progress,omitempty"`
	URL           string   `json:"url,omitempty"`
	Resolution    int      `json:"resolution,omitempty"`
	FailureReason string   `json:"failureReason,omitempty"`
}

// Event names on the realtime channel.
const (
	MessageProgress  = "job:progress"
	MessageCompleted = "job:completed"
	MessageFailed    = "job:failed"
)

// Publisher delivers a message to one user's private channel. The connection
// servers that bridge channels to authenticated clients live outside this
// system; they guarantee a user only ever joins their own channel.
type Publisher interface {
	Publish(ctx context.Context, ownerID string, msg Message) error
}

// RedisPublisher publishes to per-user Redis pub/sub channels, which any
// number of connection-server replicas can subscribe to.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher constructs a publisher over the shared Redis client.
func NewRedisPublisher(client *redis.Client, channelPrefix string) *RedisPublisher {
	if channelPrefix == "" {
		channelPrefix = "rt:user:"
	}
	return &RedisPublisher{client: client, prefix: channelPrefix}
}

// Publish sends msg to the owner's channel.
func (p *RedisPublisher) Publish(ctx context.Context, ownerID string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.prefix+ownerID, payload).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "relay", "publish", msg.Event, err)
	}
	return nil
}

var _ Publisher = (*RedisPublisher)(nil)
