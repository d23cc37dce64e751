package tool

import (
	"context"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/lock"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

const defaultLockTTL = 5 * time.Minute

func registerLockHandlers(reg *Registry) {
	reg.Register("file_lock", "acquire", "acquire an exclusive lock on a key", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[lockAcquireParams](req.Params)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(p.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		wait := time.Duration(p.WaitSeconds) * time.Second

		h, err := ac.Locks.Acquire(ctx, p.Key, ttl, wait)
		if err != nil {
			return nil, err
		}
		return h, nil
	})

	reg.Register("file_lock", "release", "release a held lock", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[lockHandleParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Locks.Release(ctx, lock.Handle{Key: p.Key, Token: p.Token}); err != nil {
			return nil, err
		}
		return map[string]any{"key": p.Key}, nil
	})

	reg.Register("file_lock", "extend", "extend a held lock's ttl", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[lockExtendParams](req.Params)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(p.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		if err := ac.Locks.Extend(ctx, lock.Handle{Key: p.Key, Token: p.Token}, ttl); err != nil {
			return nil, err
		}
		return map[string]any{"key": p.Key}, nil
	})

	reg.Register("file_lock", "status", "check whether a key is currently locked", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[lockKeyParams](req.Params)
		if err != nil {
			return nil, err
		}
		locked, err := ac.Locks.IsLocked(ctx, p.Key)
		if err != nil {
			return nil, err
		}
		if !locked {
			return map[string]any{"key": p.Key, "locked": false}, nil
		}
		owner, err := ac.Locks.OwnerToken(ctx, p.Key)
		if err != nil && !apperror.IsRetryable(err) {
			owner = ""
		}
		return map[string]any{"key": p.Key, "locked": true, "owner_token": owner}, nil
	})
}

type lockAcquireParams struct {
	Key         string `json:"key" validate:"required"`
	TTLSeconds  int    `json:"ttl_seconds,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
}

type lockHandleParams struct {
	Key   string `json:"key" validate:"required"`
	Token string `json:"token" validate:"required"`
}

type lockExtendParams struct {
	Key        string `json:"key" validate:"required"`
	Token      string `json:"token" validate:"required"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type lockKeyParams struct {
	Key string `json:"key" validate:"required"`
}
