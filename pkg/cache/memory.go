package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time // zero means no expiry
	lastUsed time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && !now.Before(m.expireAt)
}

// MemoryCache implements Service in process memory. When full it evicts the
// least recently used entry.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryItem
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		Now:             time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		now:     cfg.Now,
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.cleanupLoop(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	// Copy so later writes to a caller's slice cannot change the entry.
	data = append([]byte(nil), data...)

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.putLocked(key, data, expiration)
	return nil
}

func (mc *MemoryCache) putLocked(key string, data []byte, expiration time.Duration) {
	now := mc.now()
	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictLocked(now)
	}
	item := &memoryItem{data: data, lastUsed: now}
	if expiration > 0 {
		item.expireAt = now.Add(expiration)
	}
	mc.data[key] = item
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, ok := mc.liveLocked(key)
	var data []byte
	if ok {
		item.lastUsed = mc.now()
		data = item.data
	}
	mc.mu.Unlock()

	if !ok {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	_, ok := mc.liveLocked(key)
	return ok, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, held := mc.liveLocked(key); held {
		return "", false, nil
	}
	token := newToken()
	mc.putLocked(key, []byte(token), ttl)
	return token, true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key, token string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, ok := mc.liveLocked(key)
	if !ok || string(item.data) != token {
		return ErrLockNotHeld
	}
	delete(mc.data, key)
	return nil
}

// Len is the number of stored entries, expired ones included until swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.data)
}

// Close stops the cleanup loop.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}

func (mc *MemoryCache) liveLocked(key string) (*memoryItem, bool) {
	item, ok := mc.data[key]
	if !ok {
		return nil, false
	}
	if item.expired(mc.now()) {
		delete(mc.data, key)
		return nil, false
	}
	return item, true
}

// evictLocked drops expired entries, or the least recently used one if
// nothing has expired.
func (mc *MemoryCache) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	removed := false
	for k, item := range mc.data {
		if item.expired(now) {
			delete(mc.data, k)
			removed = true
			continue
		}
		if oldestKey == "" || item.lastUsed.Before(oldest) {
			oldestKey, oldest = k, item.lastUsed
		}
	}
	if !removed && oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

func (mc *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := mc.now()
			for k, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, k)
				}
			}
			mc.mu.Unlock()
		case <-mc.stop:
			return
		}
	}
}

var _ Service = (*MemoryCache)(nil)
