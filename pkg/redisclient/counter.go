package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TicketCounter hands out the next sequence number for an operating day.
// Implementations must be safe under concurrent callers: N concurrent calls
// for the same day yield N distinct, monotonically increasing numbers.
type TicketCounter interface {
	Next(ctx context.Context, day string) (int64, error)
}

type redisTicketCounter struct {
	client *redis.Client
}

func NewTicketCounter(client *redis.Client) TicketCounter {
	return &redisTicketCounter{client: client}
}

// Next increments the day-scoped counter atomically. The key expires two days
// after first use; numbering for a new day starts from a fresh key, which is
// what resets ticket codes at the day boundary.
func (c *redisTicketCounter) Next(ctx context.Context, day string) (int64, error) {
	key := fmt.Sprintf("queue:counter:%s", day)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("next ticket number for %s: %w", day, err)
	}

	return incr.Val(), nil
}
