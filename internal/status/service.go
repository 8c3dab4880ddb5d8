// Package status derives job status views from the broker and serves point
// and brute-force lookups.
//
// Absence is a value here: unknown jobs return (nil, nil), never an error,
// matching the distinction between "the lookup failed" and "there is no such
// job".
package status

import (
	"context"
	"log/slog"

	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
)

// JobStatus is the derived, on-demand view of one job.
type JobStatus struct {
	JobID         string       `json:"jobId"`
	Resolution    int          `json:"resolution"`
	QueueName     string       `json:"queueName"`
	State         queue.State  `json:"state"`
	Progress      float64      `json:"progress"`
	Result        *queue.Result `json:"result,omitempty"`
	FailureReason string       `json:"failureReason,omitempty"`
	Job           queue.Job    `json:"data"`
}

// Service performs job lookups across the fixed set of queues.
type Service struct {
	broker *queue.Broker
	logger *slog.Logger
}

// New constructs a status service sharing the process-wide broker.
func New(broker *queue.Broker, logger *slog.Logger) *Service {
	return &Service{
		broker: broker,
		logger: logging.NewComponentLogger(logger, "status"),
	}
}

// GetByResolution looks up a job in the queue dedicated to the resolution.
// A missing job returns (nil, nil).
func (s *Service) GetByResolution(ctx context.Context, height int, jobID string) (*JobStatus, error) {
	res, err := resolution.FromHeight(height)
	if err != nil {
		return nil, err
	}
	record, err := s.broker.Get(ctx, res.QueueName(), jobID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return derive(res, record), nil
}

// GetAny probes every queue in the fixed resolution order and returns the
// first match. Linear in the number of resolutions; intended for diagnostics
// and admin paths only.
func (s *Service) GetAny(ctx context.Context, jobID string) (*JobStatus, error) {
	for _, res := range resolution.All() {
		record, err := s.broker.Get(ctx, res.QueueName(), jobID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return derive(res, record), nil
		}
	}
	return nil, nil
}

// Remove deletes a job that is still waiting in its resolution's queue and
// reports whether a removal occurred. Jobs in any other state are left alone.
func (s *Service) Remove(ctx context.Context, height int, jobID string) (bool, error) {
	res, err := resolution.FromHeight(height)
	if err != nil {
		return false, err
	}
	removed, err := s.broker.Remove(ctx, res.QueueName(), jobID)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("job removed",
			logging.String(logging.FieldQueue, res.QueueName()),
			logging.String(logging.FieldJobID, jobID))
	}
	return removed, nil
}

// Health returns the per-state job counts for one resolution's queue.
func (s *Service) Health(ctx context.Context, height int) (queue.HealthSummary, error) {
	res, err := resolution.FromHeight(height)
	if err != nil {
		return queue.HealthSummary{}, err
	}
	return s.broker.Health(ctx, res.QueueName())
}

func derive(res resolution.Resolution, record *queue.Record) *JobStatus {
	status := &JobStatus{
		JobID:      record.Job.ID,
		Resolution: res.Height(),
		QueueName:  res.QueueName(),
		State:      record.State,
		Progress:   record.Progress,
		Job:        record.Job,
	}
	if record.State == queue.StateCompleted {
		status.Result = record.Result
	}
	if record.State == queue.StateFailed {
		status.FailureReason = record.FailureReason
	}
	return status
}
