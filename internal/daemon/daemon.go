package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"rendition/internal/config"
	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/relay"
	"rendition/internal/resolution"
	"rendition/internal/router"
	"rendition/internal/status"
	"rendition/internal/storage"
	"rendition/internal/transcode"
	"rendition/internal/worker"
)

// Daemon composes the background processing services: one worker pool per
// resolution queue, the progress relay, and the routing/status surfaces that
// share the same broker.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	client *redis.Client
	broker *queue.Broker
	router *router.Router
	status *status.Service
	relay  *relay.Relay
	pools  []*worker.Pool

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running bool
	Queues  map[string]queue.HealthSummary
}

// New constructs a daemon with initialized dependencies. The Redis client and
// object store are supplied by the caller so their lifecycle (and test
// substitution) stays outside the daemon.
func New(cfg *config.Config, client *redis.Client, store storage.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || client == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, redis client, store, and logger")
	}

	broker := queue.NewBroker(client, logger)
	engine := transcode.NewEngine(logger,
		transcode.WithFFmpeg(cfg.Transcode.FFmpegPath),
		transcode.WithFFprobe(cfg.Transcode.FFprobePath))

	pools := make([]*worker.Pool, 0, len(resolution.All()))
	for _, res := range resolution.All() {
		pools = append(pools, worker.NewPool(cfg, broker, store, engine, res, logger))
	}

	publisher := relay.NewRedisPublisher(client, cfg.Relay.ChannelPrefix)
	throttle := time.Duration(cfg.Relay.ThrottleMillis) * time.Millisecond

	return &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		client: client,
		broker: broker,
		router: router.New(cfg, broker, logger),
		status: status.New(broker, logger),
		relay:  relay.New(broker, publisher, throttle, logger),
		pools:  pools,
	}, nil
}

// Router exposes the job submission surface backed by the daemon's broker.
func (d *Daemon) Router() *router.Router { return d.router }

// StatusService exposes the job inspection surface backed by the daemon's broker.
func (d *Daemon) StatusService() *status.Service { return d.status }

// Start verifies the Redis connection and launches the relay and all worker
// pools. It returns immediately; cancel ctx (or call Stop) to shut down.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := d.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.relay.Start(runCtx)
	for _, pool := range d.pools {
		pool.Start(runCtx)
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.Int("pools", len(d.pools)),
		logging.String("redis", d.cfg.Redis.Addr))
	return nil
}

// Stop halts leasing, waits for in-flight jobs up to the configured shutdown
// timeout, then closes the relay subscriptions.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	for _, pool := range d.pools {
		pool.Stop()
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout())
	defer cancel()
	for _, pool := range d.pools {
		if err := pool.Drain(drainCtx); err != nil {
			d.logger.Warn("shutdown deadline cut drain short", logging.Error(err))
			break
		}
	}

	d.relay.Close()
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops background processing and releases the Redis connection.
func (d *Daemon) Close() error {
	d.Stop()
	return d.client.Close()
}

// Status reports whether the daemon runs and the health of every queue.
// Queues whose health lookup fails are omitted.
func (d *Daemon) Status(ctx context.Context) Status {
	queues := make(map[string]queue.HealthSummary, len(resolution.All()))
	for _, res := range resolution.All() {
		summary, err := d.broker.Health(ctx, res.QueueName())
		if err != nil {
			d.logger.Warn("queue health lookup failed",
				logging.String(logging.FieldQueue, res.QueueName()),
				logging.Error(err))
			continue
		}
		queues[res.QueueName()] = summary
	}
	return Status{Running: d.running.Load(), Queues: queues}
}

func (d *Daemon) shutdownTimeout() time.Duration {
	seconds := d.cfg.Workflow.ShutdownTimeoutSeconds
	if seconds <= 0 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}
