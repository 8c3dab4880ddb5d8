package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
)

// Relay fans queue lifecycle events out to job owners' private channels.
type Relay struct {
	broker    *queue.Broker
	publisher Publisher
	throttle  *Throttle
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	started bool
	subs    []*queue.Subscription
	wg      sync.WaitGroup
}

// Option configures optional Relay behavior.
type Option func(*Relay)

// WithClock overrides the relay's time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a relay over the shared broker.
func New(broker *queue.Broker, publisher Publisher, throttleInterval time.Duration, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		broker:    broker,
		publisher: publisher,
		throttle:  NewThrottle(throttleInterval),
		logger:    logging.NewComponentLogger(logger, "relay"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens one lifecycle subscription per resolution queue, in the fixed
// resolution order.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for _, res := range resolution.All() {
		sub := r.broker.Subscribe(ctx, res.QueueName())
		r.subs = append(r.subs, sub)
		r.wg.Add(1)
		go r.consume(ctx, sub)
	}
	r.logger.Info("relay started", logging.Int("subscriptions", len(r.subs)))
}

// Close terminates all subscriptions and waits for the consumers to stop.
func (r *Relay) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			r.logger.Warn("failed to close subscription", logging.Error(err))
		}
	}
	r.wg.Wait()
}

func (r *Relay) consume(ctx context.Context, sub *queue.Subscription) {
	defer r.wg.Done()
	for event := range sub.Events() {
		r.handle(ctx, event)
	}
}

func (r *Relay) handle(ctx context.Context, event queue.Event) {
	record, err := r.broker.Get(ctx, event.Queue, event.JobID)
	if err != nil {
		r.logger.Warn("failed to resolve job owner",
			logging.String(logging.FieldQueue, event.Queue),
			logging.String(logging.FieldJobID, event.JobID),
			logging.Error(err))
		return
	}
	if record == nil {
		// The job disappeared (removed or trimmed by retention); nothing to
		// deliver and nobody to deliver it to.
		return
	}
	owner := record.Job.OwnerID

	switch event.Type {
	case queue.EventProgress:
		now := r.now()
		if !r.throttle.ShouldEmit(event.JobID, now) {
			return
		}
		r.throttle.RecordEmission(event.JobID, now)
		progress := event.Progress
		r.deliver(ctx, owner, Message{
			Event:     MessageProgress,
			JobID:     event.JobID,
			QueueName: event.Queue,
			Progress:  &progress,
		})

	case queue.EventCompleted:
		msg := Message{
			Event:     MessageCompleted,
			JobID:     event.JobID,
			QueueName: event.Queue,
		}
		if event.Result != nil {
			msg.URL = event.Result.URL
			msg.Resolution = event.Result.Resolution
		}
		r.deliver(ctx, owner, msg)
		r.throttle.Clear(event.JobID)

	case queue.EventFailed:
		r.deliver(ctx, owner, Message{
			Event:         MessageFailed,
			JobID:         event.JobID,
			QueueName:     event.Queue,
			FailureReason: event.FailureReason,
		})
		r.throttle.Clear(event.JobID)
	}
}

func (r *Relay) deliver(ctx context.Context, ownerID string, msg Message) {
	if err := r.publisher.Publish(ctx, ownerID, msg); err != nil {
		r.logger.Warn("delivery failed",
			logging.String(logging.FieldOwner, ownerID),
			logging.String("event", msg.Event),
			logging.Error(err))
	}
}
