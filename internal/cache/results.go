// Package cache keeps the latest valuation of every cycle in Redis for
// dashboards and fans opportunities out over Redis pub/sub.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cyclescan/internal/config"
	"cyclescan/internal/model"
	"cyclescan/internal/scanner"
)

// ErrNotFound is returned when no valuation is cached for a cycle.
var ErrNotFound = errors.New("not found")

// resultTTL drops cycles that have stopped producing results.
const resultTTL = 10 * time.Minute

func valuationKey(cycleID string) string { return "valuation:" + cycleID }

// ResultCache writes scan batches to Redis.
type ResultCache struct {
	rdb     *redis.Client
	channel string
}

// NewResultCache connects to Redis and verifies the connection.
func NewResultCache(ctx context.Context, cfg config.RedisConfig) (*ResultCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &ResultCache{rdb: rdb, channel: cfg.Channel}, nil
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	return c.rdb.Close()
}

// PublishBatch stores every result of the batch under valuation:{cycleID}
// and publishes each opportunity on the configured channel, in one round trip.
func (c *ResultCache) PublishBatch(ctx context.Context, batch scanner.Batch) error {
	pipe := c.rdb.Pipeline()
	for _, r := range batch.Results {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("redis: encode result %s: %w", r.CycleID, err)
		}
		key := valuationKey(r.CycleID)
		pipe.HSet(ctx, key,
			"result", data,
			"return", strconv.FormatFloat(r.PercentReturn, 'f', -1, 64),
			"ts", strconv.FormatInt(r.ObservedAt.UnixNano(), 10),
		)
		pipe.Expire(ctx, key, resultTTL)
	}
	for _, o := range batch.Opportunities {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("redis: encode opportunity %s: %w", o.CycleID, err)
		}
		pipe.Publish(ctx, c.channel, data)
	}
	if pipe.Len() == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish batch: %w", err)
	}
	return nil
}

// Latest returns the most recent cached valuation of cycleID.
func (c *ResultCache) Latest(ctx context.Context, cycleID string) (model.ValuationResult, error) {
	data, err := c.rdb.HGet(ctx, valuationKey(cycleID), "result").Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ValuationResult{}, ErrNotFound
	}
	if err != nil {
		return model.ValuationResult{}, fmt.Errorf("redis: get valuation %s: %w", cycleID, err)
	}
	var r model.ValuationResult
	if err := json.Unmarshal(data, &r); err != nil {
		return model.ValuationResult{}, fmt.Errorf("redis: decode valuation %s: %w", cycleID, err)
	}
	return r, nil
}

// Subscribe streams opportunities published on the configured channel until
// ctx is cancelled. Payloads that do not decode are dropped.
func (c *ResultCache) Subscribe(ctx context.Context) (<-chan model.ValuationResult, error) {
	pubsub := c.rdb.Subscribe(ctx, c.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", c.channel, err)
	}

	out := make(chan model.ValuationResult, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var r model.ValuationResult
				if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
					continue
				}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
