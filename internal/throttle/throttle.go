// Package throttle locks out logins after repeated failures.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lockout counts failed attempts per key inside a fixed window.
type Lockout interface {
	// Locked reports whether the key has used up its attempts.
	Locked(ctx context.Context, key string) (bool, error)
	// Fail records a failed attempt.
	Fail(ctx context.Context, key string) error
	// Reset forgets the failures of key, e.g. after a successful login.
	Reset(ctx context.Context, key string) error
}

// RedisLockout keeps counters in Redis so several server instances share them.
type RedisLockout struct {
	client      *redis.Client
	prefix      string
	maxAttempts int64
	window      time.Duration
}

// NewRedisLockout creates a Redis backed lockout.
func NewRedisLockout(client *redis.Client, maxAttempts int, window time.Duration) *RedisLockout {
	return &RedisLockout{
		client:      client,
		prefix:      "login_failures:",
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (l *RedisLockout) Locked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Get(ctx, l.prefix+key).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read attempts: %w", err)
	}
	return n >= l.maxAttempts, nil
}

func (l *RedisLockout) Fail(ctx context.Context, key string) error {
	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	// the window starts with the first failure
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("failed to set attempt window: %w", err)
		}
	}
	return nil
}

func (l *RedisLockout) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}

// MemoryLockout is the single-process fallback used when no Redis is configured.
type MemoryLockout struct {
	mu          sync.Mutex
	attempts    map[string]*window
	maxAttempts int
	window      time.Duration
	lastPrune   time.Time
	now         func() time.Time
}

type window struct {
	count   int
	expires time.Time
}

// NewMemoryLockout creates an in-process lockout.
func NewMemoryLockout(maxAttempts int, w time.Duration) *MemoryLockout {
	return &MemoryLockout{
		attempts:    make(map[string]*window),
		maxAttempts: maxAttempts,
		window:      w,
		now:         time.Now,
	}
}

func (l *MemoryLockout) Locked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.current(key)
	return ok && w.count >= l.maxAttempts, nil
}

func (l *MemoryLockout) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > l.window {
		l.prune(now)
		l.lastPrune = now
	}

	w, ok := l.current(key)
	if !ok {
		w = &window{expires: now.Add(l.window)}
		l.attempts[key] = w
	}
	w.count++
	return nil
}

func (l *MemoryLockout) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
	return nil
}

// current returns the live window of key, dropping an expired one.
func (l *MemoryLockout) current(key string) (*window, bool) {
	w, ok := l.attempts[key]
	if !ok {
		return nil, false
	}
	if !l.now().Before(w.expires) {
		delete(l.attempts, key)
		return nil, false
	}
	return w, true
}

// prune drops every expired window, so keys that are never seen again do
// not accumulate.
func (l *MemoryLockout) prune(now time.Time) {
	for key, w := range l.attempts {
		if !now.Before(w.expires) {
			delete(l.attempts, key)
		}
	}
}
