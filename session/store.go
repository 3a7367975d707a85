package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/identityauth/identity"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or script failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix namespaces refresh records.
const DefaultPrefix = "iar"

const (
	swapStatusNotFound int64 = 0
	swapStatusExpired  int64 = 1
	swapStatusMismatch int64 = 2
	swapStatusSwapped  int64 = 3
)

// KEYS[1] record key
// ARGV[1] presented hash, ARGV[2] now ms, ARGV[3] next hash, ARGV[4] next exp ms,
// ARGV[5] retention ms (0 keeps the key forever)
const swapRefreshScript = `
local stored = redis.call("HGET", KEYS[1], "h")
if not stored then
  return 0
end
local exp = tonumber(redis.call("HGET", KEYS[1], "exp") or "0")
if exp <= tonumber(ARGV[2]) then
  return 1
end
if stored ~= ARGV[1] then
  return 2
end
redis.call("HSET", KEYS[1], "h", ARGV[3], "exp", ARGV[4])
local retention = tonumber(ARGV[5])
if retention > 0 then
  redis.call("PEXPIREAT", KEYS[1], tonumber(ARGV[4]) + retention)
end
return 3
`

var swapRefreshLua = redis.NewScript(swapRefreshScript)

// Store keeps one refresh record per user in Redis.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewStore creates a Store. retention > 0 lets Redis drop a record that long
// after it expires; zero keeps records until overwritten.
func NewStore(redisClient redis.UniversalClient, prefix string, retention time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if retention < 0 {
		retention = 0
	}
	return &Store{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

// UpdateRefreshState overwrites the user's record unconditionally.
func (s *Store) UpdateRefreshState(ctx context.Context, userID string, record identity.RefreshRecord) error {
	key := s.key(userID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "h", HashValue(record.Value), "exp", record.ExpiresAt.UnixMilli())
		if s.retention > 0 {
			pipe.PExpireAt(ctx, key, record.ExpiresAt.Add(s.retention))
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SwapRefreshState atomically replaces the record when presented matches a
// live record.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) SwapRefreshState(ctx context.Context, userID, presented string, next identity.RefreshRecord, now time.Time) error {
	code, err := swapRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		HashValue(presented),
		now.UnixMilli(),
		HashValue(next.Value),
		next.ExpiresAt.UnixMilli(),
		s.retention.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case swapStatusNotFound:
		return identity.ErrRefreshNotFound
	case swapStatusExpired:
		return identity.ErrRefreshExpired
	case swapStatusMismatch:
		return identity.ErrRefreshMismatch
	case swapStatusSwapped:
		return nil
	default:
		return fmt.Errorf("%w: unknown swap script status %d", ErrRedisUnavailable, code)
	}
}

// Get returns the stored record, or identity.ErrRefreshNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	hash, ok := fields["h"]
	if !ok {
		return nil, identity.ErrRefreshNotFound
	}
	expMS, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expiry for %s", ErrRedisUnavailable, userID)
	}
	return &Record{
		UserID:    userID,
		ValueHash: hash,
		ExpiresAt: time.UnixMilli(expMS),
	}, nil
}

// Ping reports round-trip latency to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
