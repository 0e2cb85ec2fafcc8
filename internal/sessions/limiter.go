package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	MaxLoginAttempts   = 5
	LoginAttemptWindow = time.Hour
	attemptPrefix      = "loginAttempt:"
)

// AttemptLimiter counts failed password checks per user. The window starts
// at the first failure and is not extended by later ones.
type AttemptLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewAttemptLimiter(client *redis.Client) *AttemptLimiter {
	return &AttemptLimiter{client: client, max: MaxLoginAttempts, window: LoginAttemptWindow}
}

// Blocked reports whether userID has exhausted its attempts.
func (l *AttemptLimiter) Blocked(ctx context.Context, userID string) (bool, error) {
	n, err := l.client.Get(ctx, attemptPrefix+userID).Int64()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return n >= l.max, nil
}

// Fail records one failed attempt and returns the running count.
func (l *AttemptLimiter) Fail(ctx context.Context, userID string) (int64, error) {
	key := attemptPrefix + userID
	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reset clears the counter after a successful login.
func (l *AttemptLimiter) Reset(ctx context.Context, userID string) error {
	return l.client.Del(ctx, attemptPrefix+userID).Err()
}
