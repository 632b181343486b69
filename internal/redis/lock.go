package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("store lock not acquired")
	ErrLockLost        = errors.New("store lock lost")
)

const storeLockKey = "lock:appointment-store"

// Locker serializes every writer of the appointment store. fn runs while the
// caller is the single holder of the store-wide lock. If the lock is lost
// while fn runs, fn's context is cancelled with ErrLockLost as its cause and
// WithStoreLock returns an error wrapping ErrLockLost.
type Locker interface {
	WithStoreLock(ctx context.Context, fn func(ctx context.Context) error) error
}

type LockOptions struct {
	// TTL is how long the key lives without being extended.
	TTL time.Duration
	// WaitTimeout bounds how long acquisition is retried.
	WaitTimeout time.Duration
	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
}

type redisStoreLocker struct {
	client *redis.Client
	key    string
	opts   LockOptions
}

// NewRedisStoreLocker creates a locker that guards the whole store with one Redis key
func NewRedisStoreLocker(client *redis.Client, opts LockOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	return &redisStoreLocker{
		client: client,
		key:    storeLockKey,
		opts:   opts,
	}
}

func (l *redisStoreLocker) WithStoreLock(ctx context.Context, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	if err := l.acquire(ctx, token); err != nil {
		return err
	}

	// Release with a fresh context so a cancelled request still unlocks.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.TTL)
		defer cancel()
		_ = l.release(releaseCtx, token)
	}()

	lockCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := l.keepAlive(lockCtx, cancel, token)
	err := fn(lockCtx)
	stop()

	if cause := context.Cause(lockCtx); errors.Is(cause, ErrLockLost) {
		if err != nil && !errors.Is(err, ErrLockLost) {
			return fmt.Errorf("%w: %w", cause, err)
		}
		return cause
	}
	return err
}

func (l *redisStoreLocker) acquire(ctx context.Context, token string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.opts.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, l.key, token, l.opts.TTL).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrLockNotAcquired, waitCtx.Err())
			}
			return fmt.Errorf("acquire store lock: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// keepAlive extends the key while fn runs so long operations such as a mass
// reschedule never outlive the TTL. When the key is gone or owned by another
// token, or cannot be extended, ctx is cancelled with ErrLockLost. The
// returned func stops it.
func (l *redisStoreLocker) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, token string) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(l.opts.TTL / 3)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.opts.TTL.Milliseconds()).Int64()
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					cancel(fmt.Errorf("%w: extend: %w", ErrLockLost, err))
					return
				}
				if n == 0 {
					cancel(ErrLockLost)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

var extendScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
  return 0
end
`)

func (l *redisStoreLocker) release(ctx context.Context, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release store lock: %w", err)
	}
	return nil
}
