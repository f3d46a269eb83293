// Package locker provides a per-key mutex. The wallet ledger uses it to
// serialize all mutations of a single wallet; a caller never holds more than
// one key at a time.
package locker

import "sync"

type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
// Mutexes are kept for the life of the process; the key space is bounded by
// the number of wallets.
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
