// Package redislock is the standard-profile LockAdapter backend: SET NX
// PX for acquisition and a Lua compare-and-delete for release/extend, so
// a caller never releases or extends a lock it no longer owns. Grounded
// on the teacher's internal/infrastructure/lock.DistributedLock.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agent-memory/agent-memory/internal/adapter/lock"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

// Lock wraps a go-redis client behind lock.Adapter.
type Lock struct {
	client *redis.Client
	prefix string
}

// New wraps client, namespacing keys under prefix.
func New(client *redis.Client, prefix string) *Lock {
	return &Lock{client: client, prefix: prefix}
}

func (l *Lock) key(key string) string { return l.prefix + key }

func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// Acquire issues SET NX PX, retrying with a fixed backoff until wait
// elapses if the key is already held.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (lock.Handle, error) {
	token := newToken()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, l.key(key), token, ttl).Result()
		if err != nil {
			return lock.Handle{}, err
		}
		if ok {
			return lock.Handle{Key: key, Token: token}, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return lock.Handle{}, lock.ErrAlreadyLocked
		}
		select {
		case <-ctx.Done():
			return lock.Handle{}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Release runs the compare-and-delete Lua script.
func (l *Lock) Release(ctx context.Context, h lock.Handle) error {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key(h.Key)}, h.Token).Result()
	if err != nil {
		return err
	}
	if n, ok := res.(int64); !ok || n != 1 {
		return lock.ErrNotHeld
	}
	return nil
}

// Extend runs the compare-and-pexpire Lua script.
func (l *Lock) Extend(ctx context.Context, h lock.Handle, ttl time.Duration) error {
	res, err := l.client.Eval(ctx, extendScript, []string{l.key(h.Key)}, h.Token, ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if n, ok := res.(int64); !ok || n != 1 {
		return lock.ErrNotHeld
	}
	return nil
}

// IsLocked reports whether key currently exists.
func (l *Lock) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OwnerToken returns the current holder's token, "" if free.
func (l *Lock) OwnerToken(ctx context.Context, key string) (string, error) {
	token, err := l.client.Get(ctx, l.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// Health pings redis.
func (l *Lock) Health(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
