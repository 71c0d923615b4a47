/**
 * @description
 * Company registry: the in-memory store for company records and their
 * lifecycle (application, approval, sales accumulation). The map itself is
 * guarded by an RWMutex; field mutation on an individual company happens
 * under the company's "c:<uuid>" key in the lock manager, shared with the
 * company's ledger account.
 */

package company

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
)

var (
	// ErrNotFound reports a missing company id.
	ErrNotFound = errors.New("company: not found")

	// ErrAlreadyApproved reports a second approval of the same company.
	ErrAlreadyApproved = errors.New("company: already approved")
)

// Registry maps company id to Company.
type Registry struct {
	mu        sync.RWMutex
	companies map[string]*domain.Company
	locks     *locks.Manager
	now       func() time.Time
}

// NewRegistry returns an empty registry sharing the ledger's lock manager.
func NewRegistry(lockManager *locks.Manager) *Registry {
	return &Registry{
		companies: make(map[string]*domain.Company),
		locks:     lockManager,
		now:       time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// Apply files a new, unapproved company application and returns it. The
// short name is validated and case-normalized; the company id is generated
// under the "c:<uuid>" convention.
func (r *Registry) Apply(ownerID, name, shortName, description string) (*domain.Company, error) {
	normalized, err := domain.NormalizeShortName(shortName)
	if err != nil {
		return nil, err
	}
	c := &domain.Company{
		ID:          "c:" + uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		ShortName:   normalized,
		Description: description,
		AppliedAt:   r.now().UnixMilli(),
		Holdings:    make(map[string]int),
	}
	r.mu.Lock()
	r.companies[c.ID] = c
	r.mu.Unlock()
	return c, nil
}

// Approve marks the company approved, stamps ApprovedAt (day 0 for valuation
// scheduling) and grants the full 101-share allotment to the owner.
func (r *Registry) Approve(companyID string) (*domain.Company, error) {
	c, ok := r.Get(companyID)
	if !ok {
		return nil, ErrNotFound
	}

	g := r.locks.Acquire(companyID)
	defer g.Release()

	if c.Approved {
		return nil, ErrAlreadyApproved
	}
	c.Approved = true
	c.ApprovedAt = r.now().UnixMilli()
	if c.Holdings == nil {
		c.Holdings = make(map[string]int)
	}
	c.Holdings[c.OwnerID] = domain.TotalShares
	return c, nil
}

// Get returns the live company record for id.
func (r *Registry) Get(id string) (*domain.Company, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companies[id]
	return c, ok
}

// AddSales accumulates point-of-sale revenue into the current valuation
// window (and the informational 7-day window).
func (r *Registry) AddSales(companyID string, amountCents int64) {
	c, ok := r.Get(companyID)
	if !ok {
		return
	}
	g := r.locks.Acquire(companyID)
	defer g.Release()
	c.SalesWeekCents += amountCents
	c.SalesLast7DaysCents += amountCents
}

// All returns live pointers into the registry. Callers must hold an entry's
// key in the lock manager before reading or mutating its fields; Copy and
// Snapshot do this for callers that only need a detached view.
func (r *Registry) All() []*domain.Company {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Company, 0, len(r.companies))
	for _, c := range r.companies {
		out = append(out, c)
	}
	return out
}

// Restore replaces the registry contents from persisted records. Intended
// for process start, before any operation threads exist.
func (r *Registry) Restore(companies []domain.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies = make(map[string]*domain.Company, len(companies))
	for i := range companies {
		c := companies[i]
		if c.Holdings == nil {
			c.Holdings = make(map[string]int)
		}
		r.companies[c.ID] = &c
	}
}

// Copy returns a detached copy of the company, taken under its key so no
// in-flight valuation run or trade is observed halfway.
func (r *Registry) Copy(id string) (domain.Company, bool) {
	c, ok := r.Get(id)
	if !ok {
		return domain.Company{}, false
	}
	g := r.locks.Acquire(id)
	defer g.Release()
	return copyCompany(c), true
}

// Snapshot copies every company for persistence. Each company is copied under
// its own key in the lock manager.
func (r *Registry) Snapshot() []domain.Company {
	live := r.All()
	out := make([]domain.Company, 0, len(live))
	for _, c := range live {
		g := r.locks.Acquire(c.ID)
		copied := copyCompany(c)
		g.Release()
		out = append(out, copied)
	}
	return out
}

// copyCompany deep-copies the mutable collections. Callers must hold the
// company's key.
func copyCompany(c *domain.Company) domain.Company {
	copied := *c
	copied.ValuationHistoryCents = append([]int64(nil), c.ValuationHistoryCents...)
	copied.Holdings = make(map[string]int, len(c.Holdings))
	for k, v := range c.Holdings {
		copied.Holdings[k] = v
	}
	if c.SellerListings != nil {
		copied.SellerListings = make(map[string]int, len(c.SellerListings))
		for k, v := range c.SellerListings {
			copied.SellerListings[k] = v
		}
	}
	return copied
}
