package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rendition/internal/logging"
	"rendition/internal/services"
)

// Broker provides lease-based job delivery over a shared Redis client. One
// Broker serves every queue; the queue name selects the key space. The client
// is injected once at process start and shared by the router, worker pools,
// status service, and relay.
type Broker struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// BrokerOption configures optional Broker behavior.
type BrokerOption func(*Broker)

// WithClock overrides the broker's time source (tests only).
func WithClock(now func() time.Time) BrokerOption {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBroker constructs a Broker around an existing Redis client.
func NewBroker(client *redis.Client, logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		client: client,
		logger: logging.NewComponentLogger(logger, "broker"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Client exposes the underlying connection for collaborators that share it.
func (b *Broker) Client() *redis.Client { return b.client }

// Enqueue stores the job hash and pushes the job onto the queue's waiting
// list. The policy travels with the job so later transitions are
// self-contained.
func (b *Broker) Enqueue(ctx context.Context, queueName string, job Job, policy Policy) error {
	if job.ID == "" {
		return services.Wrap(services.ErrValidation, "broker", "enqueue", "job id is required", nil)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshal policy for %s: %w", job.ID, err)
	}

	jobKey := keyJob(queueName, job.ID)
	if err := b.client.HSet(ctx, jobKey, map[string]any{
		fieldPayload:  string(payload),
		fieldPolicy:   string(policyJSON),
		fieldState:    string(StateWaiting),
		fieldProgress: "0",
		fieldAttempt:  "0",
	}).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "broker", "enqueue", "store job", err)
	}

	if err := b.client.LPush(ctx, keyWaiting(queueName), job.ID).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "broker", "enqueue", "push waiting", err)
	}

	b.logger.Debug("job enqueued",
		logging.String(logging.FieldQueue, queueName),
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, job.OwnerID))
	return nil
}

// Lease claims the oldest waiting job, moves it to the active list, stamps an
// exclusive lease, and increments the attempt counter. It returns (nil, nil)
// when the queue has no waiting jobs.
func (b *Broker) Lease(ctx context.Context, queueName string) (*Record, error) {
	jobID, err := b.client.LMove(ctx, keyWaiting(queueName), keyActive(queueName), "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "broker", "lease", "claim job", err)
	}

	record, err := b.Get(ctx, queueName, jobID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// Hash already deleted by retention; drop the stray list entry.
		b.client.LRem(ctx, keyActive(queueName), 1, jobID)
		return nil, nil
	}

	policy, err := b.policyFor(ctx, queueName, jobID)
	if err != nil {
		return nil, err
	}
	leaseUntil := b.now().Add(policy.LeaseTTL())

	attempt, err := b.client.HIncrBy(ctx, keyJob(queueName, jobID), fieldAttempt, 1).Result()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "broker", "lease", "increment attempt", err)
	}
	if err := b.client.HSet(ctx, keyJob(queueName, jobID), map[string]any{
		fieldState:      string(StateActive),
		fieldLeaseUntil: strconv.FormatInt(leaseUntil.UnixMilli(), 10),
	}).Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "broker", "lease", "stamp lease", err)
	}

	record.State = StateActive
	record.Attempt = int(attempt)
	return record, nil
}

// ExtendLease refreshes the lease of an active job so long-running work is not
// reclaimed by the reaper.
func (b *Broker) ExtendLease(ctx context.Context, queueName, jobID string) error {
	policy, err := b.policyFor(ctx, queueName, jobID)
	if err != nil {
		return err
	}
	leaseUntil := b.now().Add(policy.LeaseTTL())
	return b.client.HSet(ctx, keyJob(queueName, jobID), fieldLeaseUntil, strconv.FormatInt(leaseUntil.UnixMilli(), 10)).Err()
}

// ReportProgress records the job's progress and publishes a progress event.
// Progress is clamped to [0,100].
func (b *Broker) ReportProgress(ctx context.Context, queueName, jobID string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if err := b.client.HSet(ctx, keyJob(queueName, jobID), fieldProgress, strconv.FormatFloat(progress, 'f', -1, 64)).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "broker", "progress", "store progress", err)
	}
	return b.publish(ctx, queueName, Event{
		Type:     EventProgress,
		JobID:    jobID,
		Queue:    queueName,
		Progress: progress,
	})
}

// Complete marks an active job completed, records the result, publishes the
// completion event, and applies the completed-retention policy.
func (b *Broker) Complete(ctx context.Context, queueName, jobID string, result Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for %s: %w", jobID, err)
	}

	now := b.now()
	if err := b.client.HSet(ctx, keyJob(queueName, jobID), map[string]any{
		fieldState:      string(StateCompleted),
		fieldProgress:   "100",
		fieldResult:     string(resultJSON),
		fieldFinishedAt: now.UTC().Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "broker", "complete", "store result", err)
	}
	b.client.LRem(ctx, keyActive(queueName), 1, jobID)
	b.client.ZAdd(ctx, keyCompleted(queueName), redis.Z{Score: float64(now.UnixMilli()), Member: jobID})

	if err := b.publish(ctx, queueName, Event{
		Type:   EventCompleted,
		JobID:  jobID,
		Queue:  queueName,
		Result: &result,
	}); err != nil {
		return err
	}

	policy, policyErr := b.policyFor(ctx, queueName, jobID)
	if policyErr == nil {
		b.trimRetention(ctx, keyCompleted(queueName), queueName, policy.KeepCompletedAge, policy.KeepCompletedCount)
	}
	return nil
}

// Fail records a failed attempt. Retryable failures below the attempt budget
// move the job to the delayed set with exponential backoff; everything else is
// terminal and publishes a failed event.
func (b *Broker) Fail(ctx context.Context, queueName, jobID, reason string, retryable bool) error {
	record, err := b.Get(ctx, queueName, jobID)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrNotFound, "broker", "fail", "job "+jobID, nil)
	}

	policy, err := b.policyFor(ctx, queueName, jobID)
	if err != nil {
		return err
	}

	b.client.LRem(ctx, keyActive(queueName), 1, jobID)

	if retryable && record.Attempt < policy.Attempts {
		readyAt := b.now().Add(policy.NextBackoff(record.Attempt))
		if err := b.client.HSet(ctx, keyJob(queueName, jobID), map[string]any{
			fieldState:   string(StateDelayed),
			fieldFailure: reason,
		}).Err(); err != nil {
			return services.Wrap(services.ErrTransient, "broker", "fail", "store retry state", err)
		}
		if err := b.client.ZAdd(ctx, keyDelayed(queueName), redis.Z{
			Score:  float64(readyAt.UnixMilli()),
			Member: jobID,
		}).Err(); err != nil {
			return services.Wrap(services.ErrTransient, "broker", "fail", "schedule retry", err)
		}
		b.logger.Info("job scheduled for retry",
			logging.String(logging.FieldQueue, queueName),
			logging.String(logging.FieldJobID, jobID),
			logging.Int("attempt", record.Attempt),
			logging.Int("budget", policy.Attempts),
			logging.Duration("backoff", policy.NextBackoff(record.Attempt)))
		return nil
	}

	now := b.now()
	if err := b.client.HSet(ctx, keyJob(queueName, jobID), map[string]any{
		fieldState:      string(StateFailed),
		fieldFailure:    reason,
		fieldFinishedAt: now.UTC().Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "broker", "fail", "store failure", err)
	}
	b.client.ZAdd(ctx, keyFailed(queueName), redis.Z{Score: float64(now.UnixMilli()), Member: jobID})

	if err := b.publish(ctx, queueName, Event{
		Type:          EventFailed,
		JobID:         jobID,
		Queue:         queueName,
		FailureReason: reason,
	}); err != nil {
		return err
	}

	b.trimRetention(ctx, keyFailed(queueName), queueName, policy.KeepFailedAge, policy.KeepFailedCount)
	return nil
}

// Get reads a job record. A missing job returns (nil, nil).
func (b *Broker) Get(ctx context.Context, queueName, jobID string) (*Record, error) {
	fields, err := b.client.HGetAll(ctx, keyJob(queueName, jobID)).Result()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "broker", "get", "read job", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(fields[fieldPayload]), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}

	record := &Record{
		Job:   job,
		State: parseState(fields[fieldState]),
	}
	if raw := fields[fieldProgress]; raw != "" {
		if progress, err := strconv.ParseFloat(raw, 64); err == nil {
			record.Progress = progress
		}
	}
	if raw := fields[fieldAttempt]; raw != "" {
		if attempt, err := strconv.Atoi(raw); err == nil {
			record.Attempt = attempt
		}
	}
	if raw := fields[fieldResult]; raw != "" {
		var result Result
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			record.Result = &result
		}
	}
	record.FailureReason = fields[fieldFailure]
	if raw := fields[fieldFinishedAt]; raw != "" {
		if finished, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			record.FinishedAt = finished
		}
	}
	return record, nil
}

// Remove deletes a job that is still waiting. It reports whether a removal
// occurred; active, delayed, and finished jobs are left untouched.
func (b *Broker) Remove(ctx context.Context, queueName, jobID string) (bool, error) {
	removed, err := b.client.LRem(ctx, keyWaiting(queueName), 1, jobID).Result()
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "broker", "remove", "remove waiting", err)
	}
	if removed == 0 {
		return false, nil
	}
	if err := b.client.Del(ctx, keyJob(queueName, jobID)).Err(); err != nil {
		b.logger.Warn("failed to delete removed job hash",
			logging.String(logging.FieldQueue, queueName),
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
	}
	return true, nil
}

// Health returns per-state counts for one queue.
func (b *Broker) Health(ctx context.Context, queueName string) (HealthSummary, error) {
	var summary HealthSummary
	var err error
	if summary.Waiting, err = b.client.LLen(ctx, keyWaiting(queueName)).Result(); err != nil {
		return summary, services.Wrap(services.ErrTransient, "broker", "health", "count waiting", err)
	}
	if summary.Active, err = b.client.LLen(ctx, keyActive(queueName)).Result(); err != nil {
		return summary, services.Wrap(services.ErrTransient, "broker", "health", "count active", err)
	}
	if summary.Delayed, err = b.client.ZCard(ctx, keyDelayed(queueName)).Result(); err != nil {
		return summary, services.Wrap(services.ErrTransient, "broker", "health", "count delayed", err)
	}
	if summary.Completed, err = b.client.ZCard(ctx, keyCompleted(queueName)).Result(); err != nil {
		return summary, services.Wrap(services.ErrTransient, "broker", "health", "count completed", err)
	}
	if summary.Failed, err = b.client.ZCard(ctx, keyFailed(queueName)).Result(); err != nil {
		return summary, services.Wrap(services.ErrTransient, "broker", "health", "count failed", err)
	}
	return summary, nil
}

func (b *Broker) policyFor(ctx context.Context, queueName, jobID string) (Policy, error) {
	raw, err := b.client.HGet(ctx, keyJob(queueName, jobID), fieldPolicy).Result()
	if errors.Is(err, redis.Nil) {
		return Policy{}, services.Wrap(services.ErrNotFound, "broker", "policy", "job "+jobID, nil)
	}
	if err != nil {
		return Policy{}, services.Wrap(services.ErrTransient, "broker", "policy", "read policy", err)
	}
	var policy Policy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		return Policy{}, fmt.Errorf("decode policy for %s: %w", jobID, err)
	}
	return policy, nil
}
