/**
 * @description
 * Per-key mutual exclusion for account and company identifiers. Every ledger
 * operation that touches shared balances runs under the locks handed out
 * here; deadlock freedom comes from a single total order over the key space
 * (lexicographic), applied by Guard.Lock before any lock is taken.
 *
 * Key properties:
 * - Locks are created lazily and cached for the process lifetime. The key
 *   space is bounded by player/company count, so they are never evicted.
 * - Locks are fair: waiters are woken in FIFO order, which bounds worst-case
 *   wait time under contention.
 * - Locks are reentrant per Guard: a logical operation that already holds a
 *   key may re-acquire it in a nested call without self-deadlocking.
 */

package locks

import "sync"

// Manager hands out per-key locks. The zero value is not usable; call NewManager.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewManager returns an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*keyLock)}
}

// keyLock is one lazily created lock. Ownership is tracked per Guard so
// re-acquisition by the same logical operation is a counter increment, and
// release hands the lock directly to the oldest waiter (no barging).
type keyLock struct {
	mu      sync.Mutex
	owner   *Guard
	holds   int
	waiters []waiter
}

type waiter struct {
	guard *Guard
	ready chan struct{}
}

// Guard identifies one logical operation. All keys a guard acquires are
// released in reverse acquisition order by Release.
type Guard struct {
	m    *Manager
	keys []string
}

// NewGuard starts a new logical operation holding no locks.
func (m *Manager) NewGuard() *Guard {
	return &Guard{m: m}
}

// Acquire is the single-shot form: it creates a guard and locks the given
// keys in canonical order. The caller must Release the returned guard on
// every exit path.
func (m *Manager) Acquire(keys ...string) *Guard {
	g := m.NewGuard()
	g.Lock(keys...)
	return g
}

func (m *Manager) lockFor(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{}
		m.locks[key] = kl
	}
	return kl
}

// Lock acquires the given keys in canonical (sorted, deduplicated) order.
// Keys the guard already holds are re-entered rather than re-acquired, so a
// nested operation may lock a subset of its caller's key set.
func (g *Guard) Lock(keys ...string) {
	for _, key := range canonicalOrder(keys) {
		g.m.lockFor(key).lock(g)
		g.keys = append(g.keys, key)
	}
}

// Release unlocks every held key in reverse acquisition order. Calling it on
// a guard that holds nothing is a no-op, so deferred and explicit releases of
// the same guard compose.
func (g *Guard) Release() {
	for i := len(g.keys) - 1; i >= 0; i-- {
		g.m.lockFor(g.keys[i]).unlock(g)
	}
	g.keys = nil
}

func (kl *keyLock) lock(g *Guard) {
	kl.mu.Lock()
	if kl.owner == g {
		kl.holds++
		kl.mu.Unlock()
		return
	}
	if kl.owner == nil {
		kl.owner = g
		kl.holds = 1
		kl.mu.Unlock()
		return
	}
	w := waiter{guard: g, ready: make(chan struct{})}
	kl.waiters = append(kl.waiters, w)
	kl.mu.Unlock()
	// Ownership is assigned by the releasing goroutine before ready closes.
	<-w.ready
}

func (kl *keyLock) unlock(g *Guard) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	if kl.owner != g {
		panic("locks: release by non-owner")
	}
	kl.holds--
	if kl.holds > 0 {
		return
	}
	if len(kl.waiters) == 0 {
		kl.owner = nil
		return
	}
	next := kl.waiters[0]
	kl.waiters = kl.waiters[1:]
	kl.owner = next.guard
	kl.holds = 1
	close(next.ready)
}

// canonicalOrder sorts and deduplicates the key set. Acquiring in this total
// order across all operations is the sole deadlock-avoidance mechanism.
func canonicalOrder(keys []string) []string {
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, k)
	}
	// Insertion sort; lock sets are tiny (at most four keys).
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j] < ordered[j-1]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	deduped := ordered[:0]
	for i, k := range ordered {
		if i == 0 || k != ordered[i-1] {
			deduped = append(deduped, k)
		}
	}
	return deduped
}
