package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/testsupport"
)

type capturedMessage struct {
	Owner string
	Msg   Message
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []capturedMessage
}

func (c *capturePublisher) Publish(ctx context.Context, ownerID string, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, capturedMessage{Owner: ownerID, Msg: msg})
	return nil
}

func (c *capturePublisher) all() []capturedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedMessage(nil), c.messages...)
}

func enqueueJob(t *testing.T, broker *queue.Broker, queueName, id, owner string) {
	t.Helper()
	err := broker.Enqueue(context.Background(), queueName, queue.Job{
		ID:               id,
		SourceLocation:   "s",
		TargetResolution: 480,
		OwnerID:          owner,
		SubmittedAt:      time.Now().UTC(),
	}, queue.Policy{Attempts: 1, Timeout: time.Minute, Backoff: time.Second, LeaseMargin: time.Minute})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

func newRelayForTest(t *testing.T) (*Relay, *queue.Broker, *capturePublisher, *time.Time) {
	t.Helper()
	_, broker := testsupport.NewBroker(t)
	pub := &capturePublisher{}
	now := time.Now()
	r := New(broker, pub, 250*time.Millisecond, logging.NewNop(), WithClock(func() time.Time { return now }))
	return r, broker, pub, &now
}

func TestHandleProgressDeliversToOwnerOnly(t *testing.T) {
	r, broker, pub, _ := newRelayForTest(t)
	ctx := context.Background()

	enqueueJob(t, broker, "transcode:480", "job-1", "u1")

	r.handle(ctx, queue.Event{Type: queue.EventProgress, JobID: "job-1", Queue: "transcode:480", Progress: 42})

	messages := pub.all()
	if len(messages) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(messages))
	}
	got := messages[0]
	if got.Owner != "u1" {
		t.Fatalf("delivered to %q, want owner u1", got.Owner)
	}
	if got.Msg.Event != MessageProgress || got.Msg.JobID != "job-1" || got.Msg.QueueName != "transcode:480" {
		t.Fatalf("unexpected message: %+v", got.Msg)
	}
	if got.Msg.Progress == nil || *got.Msg.Progress != 42 {
		t.Fatalf("unexpected progress: %+v", got.Msg.Progress)
	}
}

func TestHandleProgressThrottlesWithinWindow(t *testing.T) {
	r, broker, pub, now := newRelayForTest(t)
	ctx := context.Background()

	enqueueJob(t, broker, "transcode:480", "job-1", "u1")

	event := queue.Event{Type: queue.EventProgress, JobID: "job-1", Queue: "transcode:480", Progress: 10}
	r.handle(ctx, event)

	*now = now.Add(100 * time.Millisecond)
	event.Progress = 20
	r.handle(ctx, event)

	if got := len(pub.all()); got != 1 {
		t.Fatalf("expected second event dropped, got %d deliveries", got)
	}

	*now = now.Add(200 * time.Millisecond)
	event.Progress = 30
	r.handle(ctx, event)

	if got := len(pub.all()); got != 2 {
		t.Fatalf("expected delivery after window elapsed, got %d", got)
	}
}

func TestHandleCompletedNotThrottled(t *testing.T) {
	r, broker, pub, _ := newRelayForTest(t)
	ctx := context.Background()

	enqueueJob(t, broker, "transcode:480", "job-1", "u1")

	r.handle(ctx, queue.Event{Type: queue.EventProgress, JobID: "job-1", Queue: "transcode:480", Progress: 99})
	r.handle(ctx, queue.Event{
		Type: queue.EventCompleted, JobID: "job-1", Queue: "transcode:480",
		Result: &queue.Result{URL: "https://media.example/out.mp4", Resolution: 480},
	})

	messages := pub.all()
	if len(messages) != 2 {
		t.Fatalf("completion must bypass the throttle, got %d deliveries", len(messages))
	}
	completed := messages[1].Msg
	if completed.Event != MessageCompleted || completed.URL == "" || completed.Resolution != 480 {
		t.Fatalf("unexpected completion message: %+v", completed)
	}
	if r.throttle.Len() != 0 {
		t.Fatalf("throttle entry not cleared on completion: %d", r.throttle.Len())
	}
}

func TestHandleFailedClearsThrottle(t *testing.T) {
	r, broker, pub, _ := newRelayForTest(t)
	ctx := context.Background()

	enqueueJob(t, broker, "transcode:480", "job-1", "u1")

	r.handle(ctx, queue.Event{Type: queue.EventProgress, JobID: "job-1", Queue: "transcode:480", Progress: 10})
	r.handle(ctx, queue.Event{Type: queue.EventFailed, JobID: "job-1", Queue: "transcode:480", FailureReason: "ffmpeg exit 1"})

	messages := pub.all()
	if len(messages) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(messages))
	}
	failed := messages[1].Msg
	if failed.Event != MessageFailed || failed.FailureReason != "ffmpeg exit 1" {
		t.Fatalf("unexpected failure message: %+v", failed)
	}
	if r.throttle.Len() != 0 {
		t.Fatalf("throttle entry not cleared on failure: %d", r.throttle.Len())
	}
}

func TestHandleVanishedJobIsSkipped(t *testing.T) {
	r, _, pub, _ := newRelayForTest(t)

	r.handle(context.Background(), queue.Event{Type: queue.EventProgress, JobID: "ghost", Queue: "transcode:480", Progress: 10})

	if got := len(pub.all()); got != 0 {
		t.Fatalf("expected no delivery for vanished job, got %d", got)
	}
}

func TestRelayEndToEndThroughSubscriptions(t *testing.T) {
	_, broker := testsupport.NewBroker(t)
	pub := &capturePublisher{}
	r := New(broker, pub, time.Millisecond, logging.NewNop())
	ctx := context.Background()

	r.Start(ctx)
	defer r.Close()
	time.Sleep(50 * time.Millisecond)

	enqueueJob(t, broker, "transcode:720", "job-1", "u2")
	if leased, err := broker.Lease(ctx, "transcode:720"); err != nil || leased == nil {
		t.Fatalf("Lease: %v %v", leased, err)
	}
	if err := broker.Complete(ctx, "transcode:720", "job-1", queue.Result{URL: "https://media.example/out.mp4", Resolution: 720}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		messages := pub.all()
		if len(messages) >= 1 {
			got := messages[0]
			if got.Owner != "u2" || got.Msg.Event != MessageCompleted || got.Msg.QueueName != "transcode:720" {
				t.Fatalf("unexpected delivery: %+v", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for relay delivery")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
