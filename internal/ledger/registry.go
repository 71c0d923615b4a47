/**
 * @description
 * Concurrent-safe account registry: the single in-memory store mapping
 * account id to Account. Creation is idempotent so callers can use
 * "ensure account" semantics without racing each other.
 */

package ledger

import (
	"sync"

	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
)

// Registry maps account id to Account. Map access is guarded by an RWMutex;
// balance and history access (reads included) additionally requires the
// account's key in the lock manager, so snapshots and copies never observe a
// half-applied mutation.
type Registry struct {
	mu       sync.RWMutex
	locks    *locks.Manager
	accounts map[string]*domain.Account
}

// NewRegistry returns an empty registry sharing the ledger's lock manager.
func NewRegistry(lockManager *locks.Manager) *Registry {
	return &Registry{
		locks:    lockManager,
		accounts: make(map[string]*domain.Account),
	}
}

// Ensure creates the account if absent and returns it. If an account with the
// same id already exists it is returned unchanged; the initial balance is
// never applied twice. A negative initial balance is clamped to zero so no
// account ever starts below the non-negativity invariant.
func (r *Registry) Ensure(id string, accountType domain.AccountType, ownerID string, initialBalanceCents int64) *domain.Account {
	if initialBalanceCents < 0 {
		initialBalanceCents = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.accounts[id]; ok {
		return existing
	}
	acct := &domain.Account{
		ID:           id,
		Type:         accountType,
		OwnerID:      ownerID,
		BalanceCents: initialBalanceCents,
	}
	r.accounts[id] = acct
	return acct
}

// Get returns the account for id, or (nil, false) when missing.
func (r *Registry) Get(id string) (*domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	return acct, ok
}

// Exists is a pure existence check.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.accounts[id]
	return ok
}

// Copy returns a detached copy of the account, taken under its key so no
// in-flight operation is observed halfway.
func (r *Registry) Copy(id string) (domain.Account, bool) {
	acct, ok := r.Get(id)
	if !ok {
		return domain.Account{}, false
	}
	g := r.locks.Acquire(id)
	defer g.Release()
	copied := *acct
	copied.History = append([]domain.TransactionRecord(nil), acct.History...)
	return copied, true
}

// Snapshot copies every account (history included) for persistence. Each
// account is copied under its own key, so every copied account is a state
// some completed operation left behind.
func (r *Registry) Snapshot() []domain.Account {
	r.mu.RLock()
	live := make([]*domain.Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		live = append(live, acct)
	}
	r.mu.RUnlock()

	out := make([]domain.Account, 0, len(live))
	for _, acct := range live {
		g := r.locks.Acquire(acct.ID)
		copied := *acct
		copied.History = append([]domain.TransactionRecord(nil), acct.History...)
		g.Release()
		out = append(out, copied)
	}
	return out
}

// Restore replaces the registry contents from persisted snapshots. Intended
// for process start, before any operation threads exist.
func (r *Registry) Restore(accounts []domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = make(map[string]*domain.Account, len(accounts))
	for i := range accounts {
		acct := accounts[i]
		r.accounts[acct.ID] = &acct
	}
}
