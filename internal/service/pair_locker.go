package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

// PairLocker serializes money-moving work on one (student, subject) pair.
type PairLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedLocker is an in-process PairLocker. Waiters honour ctx.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	refs  map[string]int
}

// NewKeyedLocker constructs an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: map[string]chan struct{}{}, refs: map[string]int{}}
}

// Lock blocks until key is free or ctx is done.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.refs[key]++
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot
				l.release(key)
			})
		}, nil
	case <-ctx.Done():
		l.release(key)
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrOperationInProgress.Code, appErrors.ErrOperationInProgress.Status, appErrors.ErrOperationInProgress.Message)
	}
}

func (l *KeyedLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs[key]--
	if l.refs[key] <= 0 {
		delete(l.refs, key)
		delete(l.slots, key)
	}
}

type lockStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// RedisLocker extends a KeyedLocker across replicas with a Redis lease.
// A lease held by another replica fails fast with OPERATION_IN_PROGRESS.
type RedisLocker struct {
	local  *KeyedLocker
	store  lockStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker constructs a distributed locker.
func NewRedisLocker(store lockStore, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{local: NewKeyedLocker(), store: store, ttl: ttl, logger: logger}
}

// Lock takes the in-process lock then the Redis lease.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	token, ok, err := l.store.Acquire(ctx, key, l.ttl)
	if err != nil {
		unlockLocal()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire record lock")
	}
	if !ok {
		unlockLocal()
		return nil, appErrors.Clone(appErrors.ErrOperationInProgress, "")
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.store.Release(releaseCtx, key, token); err != nil {
			l.logger.Warn("failed to release record lock", zap.String("key", key), zap.Error(err))
		}
		unlockLocal()
	}, nil
}

func lockFailure(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrOperationInProgress.Code, appErrors.ErrOperationInProgress.Status, appErrors.ErrOperationInProgress.Message)
}
