// Package router validates submissions and places them on the queue dedicated
// to the requested resolution.
package router

import (
	"fmt"
	"log/slog"
	"time"

	"context"

	"github.com/google/uuid"

	"rendition/internal/config"
	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
)

// Request describes one transcode submission.
type Request struct {
	SourceLocation   string
	OwnerID          string
	Resolution       int
	SourceArtifactID string
	Meta             map[string]string
}

// Receipt confirms a successful submission. The queue name is deterministic
// for the resolution and stable across submissions.
type Receipt struct {
	JobID      string
	Resolution resolution.Resolution
	QueueName  string
}

// Router submits jobs. It validates before touching the broker; an invalid
// resolution produces no side effects.
type Router struct {
	cfg    *config.Config
	broker *queue.Broker
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Router sharing the process-wide broker.
func New(cfg *config.Config, broker *queue.Broker, logger *slog.Logger) *Router {
	return &Router{
		cfg:    cfg,
		broker: broker,
		logger: logging.NewComponentLogger(logger, "router"),
		now:    time.Now,
	}
}

// Submit validates the request, builds the job with a server-assigned
// submission timestamp and the resolution's policy, and enqueues it. It
// returns as soon as the broker accepts the job.
func (r *Router) Submit(ctx context.Context, req Request) (Receipt, error) {
	res, err := resolution.FromHeight(req.Resolution)
	if err != nil {
		return Receipt{}, err
	}

	job := queue.Job{
		ID:               uuid.NewString(),
		Name:             jobName(res, req.OwnerID),
		SourceLocation:   req.SourceLocation,
		TargetResolution: res.Height(),
		OwnerID:          req.OwnerID,
		SubmittedAt:      r.now().UTC(),
		SourceArtifactID: req.SourceArtifactID,
		Meta:             req.Meta,
	}

	policy := queue.PolicyFromConfig(
		r.cfg.PolicyFor(res.Height()),
		time.Duration(r.cfg.Workflow.LeaseMarginSeconds)*time.Second,
	)

	queueName := res.QueueName()
	if err := r.broker.Enqueue(ctx, queueName, job, policy); err != nil {
		return Receipt{}, err
	}

	r.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldQueue, queueName),
		logging.String(logging.FieldOwner, job.OwnerID))

	return Receipt{JobID: job.ID, Resolution: res, QueueName: queueName}, nil
}

// jobName derives a human-readable name for observability. It has no effect
// on routing.
func jobName(res resolution.Resolution, ownerID string) string {
	return fmt.Sprintf("transcode-%d-%s", res.Height(), ownerID)
}
