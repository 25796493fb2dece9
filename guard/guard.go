package guard

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Keyed hands out a single slot per key. Do serializes callers that share a
// key; TryDo skips the callback entirely when the key's slot is taken, which
// is how at-most-one-in-flight submission guards are built.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{
		mu:      sync.Mutex{},
		entries: make(map[string]*entry),
	}
}

func (k *Keyed) acquireEntry(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1), refs: 0}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) releaseEntry(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Do runs fn while holding the key's slot, waiting for an earlier holder to
// settle first. Waiting is interruptible through ctx.
func (k *Keyed) Do(ctx context.Context, key string, fn func() error) error {
	e := k.acquireEntry(key)
	defer k.releaseEntry(key, e)

	if err := e.sem.Acquire(ctx, 1); nil != err {
		return ctx.Err()
	}
	defer e.sem.Release(1)

	return fn()
}

// TryDo runs fn only when the key's slot is free. It reports whether fn ran;
// a skipped call is not an error.
func (k *Keyed) TryDo(key string, fn func() error) (bool, error) {
	e := k.acquireEntry(key)
	defer k.releaseEntry(key, e)

	if !e.sem.TryAcquire(1) {
		return false, nil
	}
	defer e.sem.Release(1)

	return true, fn()
}
