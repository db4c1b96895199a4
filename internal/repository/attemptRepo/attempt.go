package attemptRepo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// attemptTTL is the sliding window for failed password attempts per token.
const attemptTTL = 15 * time.Minute

// AttemptRepo counts failed share-password attempts in Redis so the public
// verify endpoint can be throttled.
type AttemptRepo struct {
	Client *redis.Client
}

func New(client *redis.Client) *AttemptRepo {
	return &AttemptRepo{Client: client}
}

func (r *AttemptRepo) buildKey(token string) string {
	return fmt.Sprintf("pwattempts:%s", token)
}

// RecordFailure bumps the counter and returns the new value. Both commands go
// in one pipeline and the expiry uses NX, so the key always carries a TTL and
// the window starts at the first failure.
func (r *AttemptRepo) RecordFailure(ctx context.Context, token string) (int64, error) {
	key := r.buildKey(token)
	var incr *redis.IntCmd
	_, err := r.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, attemptTTL)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *AttemptRepo) TooMany(ctx context.Context, token string, limit int64) (bool, error) {
	n, err := r.Client.Get(ctx, r.buildKey(token)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= limit, nil
}

// Reset clears the counter after a successful verification.
func (r *AttemptRepo) Reset(ctx context.Context, token string) error {
	return r.Client.Del(ctx, r.buildKey(token)).Err()
}
