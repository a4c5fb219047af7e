package risk

import "sync"

type keyedMutex struct {
	sync.Mutex
	refs int
}

// keyLock serializes work per key. Entries are dropped when no caller holds
// or waits on them, so the map stays bounded by in-flight keys.
type keyLock struct {
	mu sync.Mutex
	m  map[string]*keyedMutex
}

func newKeyLock() *keyLock { return &keyLock{m: make(map[string]*keyedMutex)} }

// Lock blocks until key is free and returns its release func.
func (k *keyLock) Lock(key string) func() {
	k.mu.Lock()
	km, ok := k.m[key]
	if !ok {
		km = &keyedMutex{}
		k.m[key] = km
	}
	km.refs++
	k.mu.Unlock()

	km.Lock()
	return func() {
		km.Unlock()
		k.mu.Lock()
		km.refs--
		if km.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
