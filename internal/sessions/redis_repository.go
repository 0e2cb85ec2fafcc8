package sessions

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// rotateScript swaps the old session for the new one in a single server-side
// step. Two concurrent refreshes of the same token race on the GET inside the
// script, so exactly one of them wins.
var rotateScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
redis.call('SET', KEYS[2], ARGV[1], 'EX', ARGV[2])
redis.call('SADD', KEYS[3], ARGV[3])
redis.call('EXPIRE', KEYS[3], ARGV[2])
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[3], ARGV[4])
return 1
`)

// RedisRepository implements Repository on Redis.
// Sessions live under "refreshToken:<hash>" with a TTL; the per-user set
// "refreshToken:userID:<id>" indexes them for bulk revocation.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository creates a Redis-based session repository. A zero ttl means RefreshTTL.
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = RefreshTTL
	}
	return &RedisRepository{client: client, ttl: ttl}
}

func (r *RedisRepository) Create(ctx context.Context, hash string, s Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	// Pipelined reports the first failing command.
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(hash), b, r.ttl)
		p.SAdd(ctx, userSetKey(s.UserID), hash)
		p.Expire(ctx, userSetKey(s.UserID), r.ttl)
		return nil
	})
	return err
}

func (r *RedisRepository) Get(ctx context.Context, hash string) (*Session, error) {
	b, err := r.client.Get(ctx, sessionKey(hash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil || s.UserID == "" {
		return nil, ErrCorruptSession
	}
	return &s, nil
}

func (r *RedisRepository) Rotate(ctx context.Context, userID, oldHash, newHash string) (bool, error) {
	b, err := json.Marshal(Session{UserID: userID})
	if err != nil {
		return false, err
	}
	keys := []string{sessionKey(oldHash), sessionKey(newHash), userSetKey(userID)}
	n, err := rotateScript.Run(ctx, r.client, keys, string(b), strconv.Itoa(int(r.ttl.Seconds())), newHash, oldHash).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisRepository) Delete(ctx context.Context, userID, hash string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(hash))
		p.SRem(ctx, userSetKey(userID), hash)
		return nil
	})
	return err
}

func (r *RedisRepository) DeleteAll(ctx context.Context, userID string) (int, error) {
	hashes, err := r.Hashes(ctx, userID)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, sessionKey(h))
	}
	keys = append(keys, userSetKey(userID))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return len(hashes), nil
}

func (r *RedisRepository) Hashes(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, userSetKey(userID)).Result()
}
