// Package redisqueue is the production queue.Queue adapter. Jobs sit in a
// ZSET scored by ready-at unix-millis; Dequeue pops the lowest-scoring ready
// member and copies it into an inflight hash so Nack can requeue it and Ack
// can drop it, mirroring the teacher's redis client idiom (plain
// github.com/redis/go-redis/v9, no queue framework).
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue"
)

type redisQueue struct {
	log        *logger.Logger
	rdb        *goredis.Client
	zsetKey    string
	inflightKey string
	pollEvery  time.Duration
}

func New(log *logger.Logger) (queue.Queue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := envutil.String("REDIS_QUEUE_PREFIX", "transcript_jobs")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisQueue{
		log:         log.With("service", "redisqueue.Queue"),
		rdb:         rdb,
		zsetKey:     prefix + ":ready",
		inflightKey: prefix + ":inflight",
		pollEvery:   250 * time.Millisecond,
	}, nil
}

func (q *redisQueue) Enqueue(ctx context.Context, job domain.TranscriptionJob) error {
	return q.EnqueueDelayed(ctx, job, 0)
}

func (q *redisQueue) EnqueueDelayed(ctx context.Context, job domain.TranscriptionJob, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redisqueue encode job: %w", err)
	}
	readyAt := time.Now()
	if delay > 0 {
		readyAt = readyAt.Add(delay)
	}
	member := fmt.Sprintf("%s|%s", job.IdempotencyKey, raw)
	return q.rdb.ZAdd(ctx, q.zsetKey, goredis.Z{Score: float64(readyAt.UnixMilli()), Member: member}).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	ticker := time.NewTicker(q.pollEvery)
	defer ticker.Stop()

	for {
		nowMs := time.Now().UnixMilli()
		members, err := q.rdb.ZRangeByScore(ctx, q.zsetKey, &goredis.ZRangeBy{
			Min:    "-inf",
			Max:    fmt.Sprintf("%d", nowMs),
			Offset: 0,
			Count:  1,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("redisqueue zrangebyscore: %w", err)
		}
		if len(members) > 0 {
			member := members[0]
			removed, err := q.rdb.ZRem(ctx, q.zsetKey, member).Result()
			if err != nil {
				return nil, fmt.Errorf("redisqueue zrem: %w", err)
			}
			if removed > 0 {
				deliveryID, job, err := decodeMember(member)
				if err != nil {
					q.log.Warn("dropping malformed queue member", "error", err)
				} else {
					if err := q.rdb.HSet(ctx, q.inflightKey, deliveryID, member).Err(); err != nil {
						return nil, fmt.Errorf("redisqueue hset inflight: %w", err)
					}
					return &queue.Delivery{Job: job, DeliveryID: deliveryID}, nil
				}
			}
			// another consumer won the race; fall through to poll again
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *redisQueue) Ack(ctx context.Context, deliveryID string) error {
	return q.rdb.HDel(ctx, q.inflightKey, deliveryID).Err()
}

func (q *redisQueue) Nack(ctx context.Context, deliveryID string) error {
	member, err := q.rdb.HGet(ctx, q.inflightKey, deliveryID).Result()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redisqueue hget inflight: %w", err)
	}
	if err := q.rdb.ZAdd(ctx, q.zsetKey, goredis.Z{Score: float64(time.Now().UnixMilli()), Member: member}).Err(); err != nil {
		return fmt.Errorf("redisqueue requeue: %w", err)
	}
	return q.rdb.HDel(ctx, q.inflightKey, deliveryID).Err()
}

func decodeMember(member string) (string, domain.TranscriptionJob, error) {
	parts := strings.SplitN(member, "|", 2)
	if len(parts) != 2 {
		return "", domain.TranscriptionJob{}, fmt.Errorf("malformed queue member")
	}
	var job domain.TranscriptionJob
	if err := json.Unmarshal([]byte(parts[1]), &job); err != nil {
		return "", domain.TranscriptionJob{}, fmt.Errorf("decode job: %w", err)
	}
	return parts[0], job, nil
}
