package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedKeyPrefix     = "auth:revoked:"
	outstandingKeyPrefix = "auth:outstanding:"
)

// RevocationLedger records revoked refresh token ids. Entries expire with the
// token they describe.
type RevocationLedger interface {
	// Revoke marks jti revoked until exp. It returns false when jti was
	// already revoked.
	Revoke(ctx context.Context, jti string, exp time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Track registers an issued refresh token as outstanding for userID.
	Track(ctx context.Context, userID int64, jti string, exp time.Time) error
	Untrack(ctx context.Context, userID int64, jti string) error
	// RevokeAll revokes every outstanding refresh token of userID and returns
	// how many were revoked.
	RevokeAll(ctx context.Context, userID int64) (int, error)
	Ping(ctx context.Context) error
}

const revokeAllScript = `
local now = tonumber(ARGV[1])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now)
local live = redis.call('ZRANGE', KEYS[1], 0, -1, 'WITHSCORES')
local n = 0
for i = 1, #live, 2 do
  local ttl = math.floor(tonumber(live[i + 1]) - now)
  if ttl < 1 then ttl = 1 end
  redis.call('SET', ARGV[2] .. live[i], '1', 'EX', ttl, 'NX')
  redis.call('ZREM', KEYS[1], live[i])
  n = n + 1
end
return n
`

var revokeAllLua = redis.NewScript(revokeAllScript)

type RedisLedger struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client, now: time.Now}
}

func (l *RedisLedger) Revoke(ctx context.Context, jti string, exp time.Time) (bool, error) {
	ttl := exp.Sub(l.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := l.client.SetNX(ctx, revokedKeyPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Track(ctx context.Context, userID int64, jti string, exp time.Time) error {
	key := outstandingKey(userID)
	now := l.now()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Unix(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(exp.Unix()), Member: jti})
	pipe.ExpireAt(ctx, key, exp)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to track token: %w", err)
	}
	return nil
}

func (l *RedisLedger) Untrack(ctx context.Context, userID int64, jti string) error {
	if err := l.client.ZRem(ctx, outstandingKey(userID), jti).Err(); err != nil {
		return fmt.Errorf("failed to untrack token: %w", err)
	}
	return nil
}

// RevokeAll runs as one script so a token tracked concurrently is either
// revoked here or left in the set for the next sweep.
func (l *RedisLedger) RevokeAll(ctx context.Context, userID int64) (int, error) {
	n, err := revokeAllLua.Run(ctx, l.client,
		[]string{outstandingKey(userID)},
		l.now().Unix(), revokedKeyPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return n, nil
}

func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func outstandingKey(userID int64) string {
	return outstandingKeyPrefix + strconv.FormatInt(userID, 10)
}
