// Package cache provides key/value stores with expiry and advisory locks,
// backed by Redis or process memory.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrLockNotHeld is returned by Unlock when the token no longer owns the lock.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// Service defines cache operations. Values are JSON encoded; []byte and
// string values are stored as is.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// TryLock acquires key for ttl and returns the owner token.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases key if token still owns it.
	Unlock(ctx context.Context, key, token string) error
	Close() error
}
