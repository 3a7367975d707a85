package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces throttle counters.
const DefaultPrefix = "iat"

type Config struct {
	Prefix           string
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
}

// bump increments a counter and starts its window on the first hit, in one
// round trip so a crash between INCR and PEXPIRE cannot leave an immortal key.
var bump = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Limiter keeps fixed-window failed-login counters per username and,
// optionally, per client IP.
type Limiter struct {
	rdb redis.UniversalClient
	cfg Config
}

func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{rdb: rdb, cfg: cfg}
}

// keys returns the counters an attempt is charged to.
func (l *Limiter) keys(username, ip string) []string {
	keys := []string{l.cfg.Prefix + ":lu:" + strings.ToLower(strings.TrimSpace(username))}
	if l.cfg.EnableIPThrottle && ip != "" {
		keys = append(keys, l.cfg.Prefix+":li:"+ip)
	}
	return keys
}

// CheckLogin returns ErrRateLimited when any counter for the attempt has
// reached the budget. Keys are read one at a time since the username and IP
// counters may hash to different cluster slots.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		n, err := l.rdb.Get(ctx, key).Int()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n >= l.cfg.MaxLoginAttempts {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin charges one failed attempt. The attempt that spends the
// last unit of budget still returns nil; ErrRateLimited is reserved for
// attempts that slipped past CheckLogin concurrently and overshot it.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	window := l.cfg.LoginCooldown.Milliseconds()
	limited := false
	for _, key := range l.keys(username, ip) {
		n, err := bump.Run(ctx, l.rdb, []string{key}, window).Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		limited = limited || n > int64(l.cfg.MaxLoginAttempts)
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the username counter. The IP counter runs out its
// window so one good account cannot launder an IP.
func (l *Limiter) ResetLogin(ctx context.Context, username, ip string) error {
	if err := l.rdb.Del(ctx, l.keys(username, "")[0]).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts reports the current username counter.
func (l *Limiter) LoginAttempts(ctx context.Context, username string) (int, error) {
	n, err := l.rdb.Get(ctx, l.keys(username, "")[0]).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return max(n, 0), nil
}
