package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"rendition/internal/logging"
	"rendition/internal/services"
)

// EventType identifies a lifecycle event on a queue's event channel.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is a lifecycle notification published for every queue transition that
// clients care about. Delivery to subscribers is best-effort.
type Event struct {
	Type          EventType `json:"type"`
	JobID         string    `json:"jobId"`
	Queue         string    `json:"queue"`
	Progress      float64   `json:"progress,omitempty"`
	Result        *Result   `json:"result,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
}

func (b *Broker) publish(ctx context.Context, queueName string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, keyEvents(queueName), payload).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "broker", "publish", string(event.Type), err)
	}
	return nil
}

// Subscription delivers decoded lifecycle events for one queue. Close stops
// the decode loop and releases the underlying pub/sub connection.
type Subscription struct {
	queueName string
	pubsub    *redis.PubSub
	events    chan Event
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// Subscribe opens a lifecycle-event subscription for one queue. Malformed
// payloads are logged and skipped; connection errors are handled by the Redis
// client's own reconnect logic.
func (b *Broker) Subscribe(ctx context.Context, queueName string) *Subscription {
	pubsub := b.client.Subscribe(ctx, keyEvents(queueName))
	sub := &Subscription{
		queueName: queueName,
		pubsub:    pubsub,
		events:    make(chan Event, 64),
		logger:    logging.NewComponentLogger(b.logger, "subscription"),
		done:      make(chan struct{}),
	}
	go sub.run()
	return sub
}

// Events returns the channel of decoded lifecycle events. It is closed when
// the subscription closes.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close terminates the subscription.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *Subscription) run() {
	defer close(s.events)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("dropping malformed lifecycle event",
					logging.String(logging.FieldQueue, s.queueName),
					logging.Error(err))
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}
