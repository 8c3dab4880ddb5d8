package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rendition/internal/config"
	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
	"rendition/internal/storage"
)

// Pool processes one resolution queue with bounded concurrency. Leasing stops
// when the start context is cancelled; jobs already in flight run to
// completion (or their per-attempt timeout) and are waited for via Drain.
type Pool struct {
	cfg       *config.Config
	broker    *queue.Broker
	store     storage.Store
	engine    Converter
	res       resolution.Resolution
	queueName string
	tempDir   string
	logger    *slog.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// PoolOption configures optional Pool behavior.
type PoolOption func(*Pool)

// WithPollInterval overrides the idle-queue polling interval.
func WithPollInterval(interval time.Duration) PoolOption {
	return func(p *Pool) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

// NewPool constructs a pool for one resolution queue.
func NewPool(cfg *config.Config, broker *queue.Broker, store storage.Store, engine Converter, res resolution.Resolution, logger *slog.Logger, opts ...PoolOption) *Pool {
	pool := &Pool{
		cfg:          cfg,
		broker:       broker,
		store:        store,
		engine:       engine,
		res:          res,
		queueName:    res.QueueName(),
		tempDir:      cfg.Paths.TempDir,
		logger:       logging.NewComponentLogger(logger, "worker").With(logging.String(logging.FieldQueue, res.QueueName())),
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Start launches the lease loops and the maintenance loop. It returns
// immediately; cancel ctx to stop accepting new leases.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	leaseCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	concurrency := p.cfg.Workflow.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.runWorker(leaseCtx)
	}

	p.wg.Add(1)
	go p.runMaintenance(leaseCtx)

	p.logger.Info("worker pool started", logging.Int("concurrency", concurrency))
}

// Stop cancels leasing without waiting for in-flight jobs.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Drain blocks until all in-flight jobs finish or ctx expires. It returns
// ctx.Err() when the deadline cut the drain short.
func (p *Pool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		record, err := p.broker.Lease(ctx, p.queueName)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("lease failed", logging.Error(err))
			p.sleep(ctx, p.pollInterval)
			continue
		}
		if record == nil {
			p.sleep(ctx, p.pollInterval)
			continue
		}

		// The job context is detached from the lease context so shutdown
		// stops new leases without killing work already in flight.
		jobCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))
		p.startHeartbeat(jobCtx, record.Job.ID)
		_ = p.process(jobCtx, record)
		stopHeartbeat()
	}
}

// startHeartbeat extends the job's lease periodically while it is processed so
// the reaper never reclaims a legitimately running job.
func (p *Pool) startHeartbeat(ctx context.Context, jobID string) {
	interval := time.Duration(p.cfg.Workflow.HeartbeatSeconds) * time.Second
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.broker.ExtendLease(ctx, p.queueName, jobID); err != nil {
					p.logger.Warn("failed to extend lease",
						logging.String(logging.FieldJobID, jobID),
						logging.Error(err))
				}
			}
		}
	}()
}

// runMaintenance periodically requeues expired leases and promotes due
// retries. Every worker process runs this; the operations are idempotent.
func (p *Pool) runMaintenance(ctx context.Context) {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.Workflow.ReaperIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := p.broker.ReapExpired(ctx, p.queueName)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("reaper pass failed", logging.Error(err))
				}
				continue
			}
			if moved > 0 {
				p.logger.Info("reaper requeued jobs", logging.Int("count", moved))
			}
		}
	}
}

func (p *Pool) policy() queue.Policy {
	return queue.PolicyFromConfig(
		p.cfg.PolicyFor(p.res.Height()),
		time.Duration(p.cfg.Workflow.LeaseMarginSeconds)*time.Second,
	)
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
