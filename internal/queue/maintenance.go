package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rendition/internal/logging"
	"rendition/internal/services"
)

// ReapExpired requeues active jobs whose lease has lapsed and promotes delayed
// retries that are due. It returns the number of jobs moved back to waiting.
// Safe to run from every worker process; operations are per-job and idempotent.
func (b *Broker) ReapExpired(ctx context.Context, queueName string) (int, error) {
	moved := 0
	now := b.now().UnixMilli()

	activeIDs, err := b.client.LRange(ctx, keyActive(queueName), 0, -1).Result()
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "broker", "reap", "list active", err)
	}
	for _, jobID := range activeIDs {
		raw, err := b.client.HGet(ctx, keyJob(queueName, jobID), fieldLeaseUntil).Result()
		if err != nil {
			continue
		}
		leaseUntil, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || leaseUntil > now {
			continue
		}
		if removed, _ := b.client.LRem(ctx, keyActive(queueName), 1, jobID).Result(); removed == 0 {
			continue
		}
		b.client.HSet(ctx, keyJob(queueName, jobID), fieldState, string(StateWaiting))
		b.client.LPush(ctx, keyWaiting(queueName), jobID)
		b.logger.Warn("requeued job with expired lease",
			logging.String(logging.FieldQueue, queueName),
			logging.String(logging.FieldJobID, jobID))
		moved++
	}

	dueIDs, err := b.client.ZRangeByScore(ctx, keyDelayed(queueName), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return moved, services.Wrap(services.ErrTransient, "broker", "reap", "list delayed", err)
	}
	for _, jobID := range dueIDs {
		if removed, _ := b.client.ZRem(ctx, keyDelayed(queueName), jobID).Result(); removed == 0 {
			continue
		}
		b.client.HSet(ctx, keyJob(queueName, jobID), fieldState, string(StateWaiting))
		b.client.LPush(ctx, keyWaiting(queueName), jobID)
		moved++
	}

	return moved, nil
}

// trimRetention enforces the age and count caps on a finished-job set,
// whichever triggers first, deleting the trimmed jobs' hashes. Failures are
// logged only; retention must never affect the job outcome being recorded.
func (b *Broker) trimRetention(ctx context.Context, setKey, queueName string, maxAge time.Duration, maxCount int) {
	var expired []string

	if maxAge > 0 {
		cutoff := b.now().Add(-maxAge).UnixMilli()
		ids, err := b.client.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(cutoff, 10),
		}).Result()
		if err != nil {
			b.logger.Warn("retention scan failed",
				logging.String(logging.FieldQueue, queueName),
				logging.Error(err))
			return
		}
		expired = append(expired, ids...)
	}

	if maxCount > 0 {
		total, err := b.client.ZCard(ctx, setKey).Result()
		if err != nil {
			b.logger.Warn("retention count failed",
				logging.String(logging.FieldQueue, queueName),
				logging.Error(err))
			return
		}
		if over := total - int64(maxCount); over > 0 {
			ids, err := b.client.ZRange(ctx, setKey, 0, over-1).Result()
			if err == nil {
				expired = append(expired, ids...)
			}
		}
	}

	for _, jobID := range expired {
		if removed, _ := b.client.ZRem(ctx, setKey, jobID).Result(); removed == 0 {
			continue
		}
		if err := b.client.Del(ctx, keyJob(queueName, jobID)).Err(); err != nil {
			b.logger.Warn("retention delete failed",
				logging.String(logging.FieldQueue, queueName),
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err))
		}
	}
}
