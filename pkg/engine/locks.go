package engine

import "sync"

// conversantLocks serializes turn processing per conversant. Different
// conversants proceed fully in parallel; a second inbound event for the same
// conversant queues behind the in-flight one.
type conversantLocks struct {
	mu    sync.Mutex
	locks map[string]*conversantLock
}

type conversantLock struct {
	mu   sync.Mutex
	refs int
}

func newConversantLocks() *conversantLocks {
	return &conversantLocks{locks: make(map[string]*conversantLock)}
}

// Lock acquires the conversant's lock and returns its release function.
func (c *conversantLocks) Lock(conversantID string) func() {
	c.mu.Lock()

	lock, ok := c.locks[conversantID]
	if !ok {
		lock = &conversantLock{}
		c.locks[conversantID] = lock
	}

	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		c.mu.Lock()

		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, conversantID)
		}

		c.mu.Unlock()
	}
}

// TryLock acquires the lock only if no turn is in flight. The idle sweeper
// uses it so expiry never races an active turn.
func (c *conversantLocks) TryLock(conversantID string) (func(), bool) {
	c.mu.Lock()

	lock, ok := c.locks[conversantID]
	if !ok {
		lock = &conversantLock{}
		c.locks[conversantID] = lock
	}

	lock.refs++
	c.mu.Unlock()

	if !lock.mu.TryLock() {
		c.mu.Lock()

		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, conversantID)
		}

		c.mu.Unlock()

		return nil, false
	}

	return func() {
		lock.mu.Unlock()

		c.mu.Lock()

		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, conversantID)
		}

		c.mu.Unlock()
	}, true
}
