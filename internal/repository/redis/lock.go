package redisrepo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ReaperLock makes sure a single replica sweeps expired holds at a time.
type ReaperLock struct {
	rs     *redsync.Redsync
	name   string
	expiry time.Duration
}

func NewReaperLock(rdb *redis.Client, name string, expiry time.Duration) *ReaperLock {
	return &ReaperLock{
		rs:     redsync.New(goredis.NewPool(rdb)),
		name:   name,
		expiry: expiry,
	}
}

// TryLock acquires the lock without waiting. It returns ok=false when another
// replica holds it. The returned unlock must be called once the sweep is over.
func (l *ReaperLock) TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error) {
	m := l.rs.NewMutex(l.name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := m.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return func(ctx context.Context) error {
		_, err := m.UnlockContext(ctx)
		return err
	}, true, nil
}
