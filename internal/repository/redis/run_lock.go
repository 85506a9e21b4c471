package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trieu/leo-activation/business/affinity"
)

const (
	runLockKeyPrefix = "affinity:batchlock:"

	// A batch run that outlives this is assumed dead; the TTL keeps a
	// crashed run from wedging the tenant forever.
	runLockTTL = 30 * time.Minute
)

// RunLock serializes batch scoring runs per tenant with a SET NX lease.
type RunLock struct {
	client *redis.Client
}

var _ affinity.RunLock = (*RunLock)(nil)

func NewRunLock(client *redis.Client) *RunLock {
	return &RunLock{client: client}
}

func (l *RunLock) Acquire(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	key := runLockKeyPrefix + tenantID.String()

	acquired, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), runLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire batch lock: %w", err)
	}

	return acquired, nil
}

func (l *RunLock) Release(ctx context.Context, tenantID uuid.UUID) error {
	key := runLockKeyPrefix + tenantID.String()

	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release batch lock: %w", err)
	}

	return nil
}
