package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/codexam/internal/config"
)

var ErrLockHeld = errors.New("lock is held by another request")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SubmitLocker serializes submissions of the same attempt across instances.
type SubmitLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSubmitLocker creates a locker whose locks expire after ttl.
func NewSubmitLocker(rdb *redis.Client, ttl time.Duration) *SubmitLocker {
	return &SubmitLocker{rdb: rdb, ttl: ttl}
}

// Acquire takes the attempt lock or returns ErrLockHeld. The returned func releases it.
func (l *SubmitLocker) Acquire(ctx context.Context, attemptID uuid.UUID) (func(), error) {
	key := config.CacheKey.AttemptSubmitLockKey(attemptID.String())
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() {
		// Released with a fresh context so a cancelled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err()
	}, nil
}
