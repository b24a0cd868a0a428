package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kursadbilgin/item-processor/internal/domain"
	"github.com/kursadbilgin/item-processor/internal/tracker"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultStatusKeyPrefix = "items:processing"
	defaultStatusTTL       = time.Hour
)

var _ tracker.Mirror = (*StatusMirror)(nil)

// StatusMirror publishes tracker state to Redis: one hash of id -> status and
// one integer completed counter, both expiring after ttl of inactivity.
type StatusMirror struct {
	client       *goredis.Client
	statusKey    string
	completedKey string
	ttl          time.Duration
}

func NewStatusMirror(client *goredis.Client, keyPrefix string, ttl time.Duration) (*StatusMirror, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if keyPrefix == "" {
		keyPrefix = defaultStatusKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}

	return &StatusMirror{
		client:       client,
		statusKey:    keyPrefix + ":status",
		completedKey: keyPrefix + ":completed",
		ttl:          ttl,
	}, nil
}

func (m *StatusMirror) Reset(ctx context.Context) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, m.statusKey)
	pipe.Set(ctx, m.completedKey, 0, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset status mirror: %w", err)
	}
	return nil
}

func (m *StatusMirror) SetStatuses(ctx context.Context, status domain.ProcessingStatus, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	values := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		values = append(values, strconv.FormatInt(id, 10), status.String())
	}

	pipe := m.client.Pipeline()
	pipe.HSet(ctx, m.statusKey, values...)
	pipe.Expire(ctx, m.statusKey, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror status %s for %d item(s): %w", status, len(ids), err)
	}
	return nil
}

func (m *StatusMirror) IncrCompleted(ctx context.Context) error {
	pipe := m.client.Pipeline()
	pipe.Incr(ctx, m.completedKey)
	pipe.Expire(ctx, m.completedKey, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror completed counter: %w", err)
	}
	return nil
}

// Status reads a mirrored status; missing entries report UNKNOWN.
func (m *StatusMirror) Status(ctx context.Context, id int64) (domain.ProcessingStatus, error) {
	value, err := m.client.HGet(ctx, m.statusKey, strconv.FormatInt(id, 10)).Result()
	if err == goredis.Nil {
		return domain.ProcessingUnknown, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read mirrored status: %w", err)
	}
	return domain.ParseProcessingStatusFromString(value)
}

func (m *StatusMirror) CompletedCount(ctx context.Context) (int64, error) {
	n, err := m.client.Get(ctx, m.completedKey).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read mirrored completed counter: %w", err)
	}
	return n, nil
}
