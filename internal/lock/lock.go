// Package lock guarantees a single active run of a named job.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLocked is returned when another holder owns the lock.
	ErrLocked = errors.New("lock held elsewhere")
	// ErrLockLost is returned when the lock could not be extended while fn
	// was running. fn's context is cancelled at that point.
	ErrLockLost = errors.New("lock lost while running")
)

type Locker interface {
	// WithLock runs fn while holding key. It does not wait for a busy lock.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// NopLocker runs fn directly. Used when no Redis is configured and the
// process is the only runner.
type NopLocker struct{}

func (NopLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

func NewRedisLocker(client *redis.Client, expiry time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if expiry <= 0 {
		return nil, errors.New("lock expiry must be > 0")
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
	}, nil
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("lock key is empty")
	}

	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if contention(err) {
			return fmt.Errorf("%s: %w", key, ErrLocked)
		}
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	defer func() {
		// The run may have been cancelled; release on a fresh context.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(releaseCtx); !ok || err != nil {
			slog.Error("failed to release lock", "key", key, "unlock_ok", ok, "err", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lost := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(runCtx, mutex, key, cancel, lost)
	}()

	err := fn(runCtx)
	cancel()
	<-done

	select {
	case <-lost:
		return errors.Join(err, fmt.Errorf("%s: %w", key, ErrLockLost))
	default:
		return err
	}
}

// keepAlive extends the mutex every third of its expiry until ctx is done.
// A failed extension closes lost and cancels the run.
func (l *RedisLocker) keepAlive(ctx context.Context, mutex *redsync.Mutex, key string, cancel context.CancelFunc, lost chan<- struct{}) {
	ticker := time.NewTicker(max(l.expiry/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := mutex.ExtendContext(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil || !ok {
				slog.Error("failed to extend lock, cancelling run", "key", key, "extend_ok", ok, "err", err)
				close(lost)
				cancel()
				return
			}
			slog.Debug("lock extended", "key", key)
		}
	}
}

func contention(err error) bool {
	var taken *redsync.ErrTaken
	return errors.Is(err, redsync.ErrFailed) ||
		errors.As(err, &taken) ||
		strings.Contains(err.Error(), "lock already taken")
}
