package adapter

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned by TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another worker")

// Locker is a short-lived distributed mutex.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// EventDeduper remembers provider event ids for a bounded window.
type EventDeduper interface {
	// FirstSeen records id and reports whether this is its first delivery.
	FirstSeen(ctx context.Context, id string) (bool, error)
	// Forget drops id so a redelivery is processed again.
	Forget(ctx context.Context, id string) error
}
