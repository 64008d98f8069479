package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/instance"
	pkgredis "github.com/Thangvh29/WEB-tmdt-sub001/pkg/redis"
)

const defaultLockTTL = 4 * time.Minute

// Lock makes a cron cycle exclusive across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// RedisLock takes a named redis lock for one cycle. Each acquisition uses a
// fresh owner token prefixed with the instance id, so the holder is visible
// in redis and a stale release can never free someone else's lock.
type RedisLock struct {
	store lockStore
	name  string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store lockStore, name string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case name == "":
		return nil, errors.New("lock name is required")
	case ttl <= 0:
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, name: name, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := instance.GetID() + "/" + uuid.NewString()
	got, err := l.store.AcquireLock(ctx, l.name, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.name, err)
	}
	if got {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return got, nil
}

// Release is a no-op when nothing is held, and losing the lock to expiry
// before release is not an error.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}

	err := l.store.ReleaseLock(ctx, l.name, token)
	if err != nil && !errors.Is(err, pkgredis.ErrLockNotHeld) {
		return fmt.Errorf("release lock %s: %w", l.name, err)
	}
	return nil
}
