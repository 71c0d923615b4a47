/**
 * @description
 * The valuation engine. Invoked on a fixed interval (the scheduler runs it
 * every five minutes by default; the interval itself is not load-bearing,
 * the catch-up loop below tolerates late or missed ticks). For each approved
 * company it computes zero or more successive weekly valuations from the
 * rolling sales window using a smoothed recurrence:
 *
 *   V_1 = max(0, 6*sales)
 *   V_n = max(0, (6*sales + 2*V_{n-1}) / 3)   (truncating division)
 *
 * The first valuation is due eight days after approval; each following one
 * seven days after the previous valuation timestamp. When the engine is
 * behind, it runs synthetic catch-up steps (sales count only toward the
 * first step of a run) bounded at 52 per company per run.
 *
 * @dependencies
 * - internal/company, internal/domain, internal/locks, internal/money.
 */

package valuation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TheL321/PrimeBank-sub000/internal/company"
	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/ledger"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
	"github.com/TheL321/PrimeBank-sub000/internal/money"
)

const (
	firstWindowMs = int64(8 * 24 * time.Hour / time.Millisecond)
	windowMs      = int64(7 * 24 * time.Hour / time.Millisecond)

	// maxCatchUpSteps bounds one run to a year of synthetic ticks, guarding
	// against runaway loops after a very long outage.
	maxCatchUpSteps = 52
)

// Persister is the subset of the persistence collaborator the engine needs.
type Persister interface {
	SaveCompany(ctx context.Context, c domain.Company) error
}

// Service recomputes company valuations. It runs on a single dedicated
// scheduler thread; all company mutation happens under the company's key in
// the lock manager.
type Service struct {
	companies *company.Registry
	locks     *locks.Manager
	repo      Persister
	notifier  ledger.Notifier
	logger    *slog.Logger
	now       func() time.Time

	// lastSeen clamps the wall clock monotonic-non-decreasing per company so
	// a backwards clock step cannot produce a negative due window.
	mu       sync.Mutex
	lastSeen map[string]int64
}

// NewService wires the valuation engine.
func NewService(companies *company.Registry, lockManager *locks.Manager, repo Persister, notifier ledger.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = ledger.NopNotifier{}
	}
	return &Service{
		companies: companies,
		locks:     lockManager,
		repo:      repo,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		lastSeen:  make(map[string]int64),
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// RunOnce processes every eligible company. It is the scheduler's job body.
func (s *Service) RunOnce(ctx context.Context) {
	nowMs := s.now().UnixMilli()
	for _, c := range s.companies.All() {
		if err := s.runCompany(ctx, c, nowMs); err != nil {
			s.logger.Error("valuation run failed", "company_id", c.ID, "error", err)
		}
	}
}

func (s *Service) runCompany(ctx context.Context, c *domain.Company, nowMs int64) error {
	nowMs = s.clampClock(c.ID, nowMs)

	g := s.locks.Acquire(c.ID)
	defer g.Release()

	// Eligibility is read under the company's key so a concurrent approval is
	// either fully visible or not at all.
	if !c.EligibleForValuation() {
		return nil
	}

	sales := c.SalesWeekCents
	previous := c.ValuationCurrentCents
	hasPrevious := c.LastValuationAt > 0

	due := c.ApprovedAt + firstWindowMs
	if hasPrevious {
		due = c.LastValuationAt + windowMs
	}

	steps := 0
	for nowMs >= due && steps < maxCatchUpSteps {
		v, err := nextValuation(sales, previous, hasPrevious)
		if err != nil {
			return err
		}
		c.ValuationHistoryCents = append(c.ValuationHistoryCents, v)
		for len(c.ValuationHistoryCents) > domain.ValuationHistoryCap {
			c.ValuationHistoryCents = c.ValuationHistoryCents[1:]
		}
		c.LastValuationAt = due

		previous = v
		hasPrevious = true
		// No additional sales were recorded while the engine was behind.
		sales = 0
		due += windowMs
		steps++
	}
	if steps == 0 {
		return nil
	}

	c.ValuationCurrentCents = previous
	c.SalesWeekCents = 0

	// Copy everything the persister will read before the lock drops.
	snapshot := *c
	snapshot.ValuationHistoryCents = append([]int64(nil), c.ValuationHistoryCents...)
	snapshot.Holdings = make(map[string]int, len(c.Holdings))
	for k, v := range c.Holdings {
		snapshot.Holdings[k] = v
	}
	g.Release()

	s.notifier.LogValuation(fmt.Sprintf("valuation for %s: %s after %d step(s)",
		snapshot.ShortName, money.FormatUSD(snapshot.ValuationCurrentCents), steps))
	if s.repo != nil {
		if err := s.repo.SaveCompany(ctx, snapshot); err != nil {
			return fmt.Errorf("persist company %s: %w", snapshot.ID, err)
		}
	}
	return nil
}

// nextValuation applies one recurrence step. Division truncates; a negative
// intermediate is floored at zero.
func nextValuation(salesCents, previousCents int64, hasPrevious bool) (int64, error) {
	weighted, err := money.Mul(salesCents, 6)
	if err != nil {
		return 0, err
	}
	if hasPrevious {
		carried, err := money.Mul(previousCents, 2)
		if err != nil {
			return 0, err
		}
		weighted, err = money.Add(weighted, carried)
		if err != nil {
			return 0, err
		}
		weighted /= 3
	}
	if weighted < 0 {
		weighted = 0
	}
	return weighted, nil
}

func (s *Service) clampClock(companyID string, nowMs int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seen := s.lastSeen[companyID]; nowMs < seen {
		return seen
	}
	s.lastSeen[companyID] = nowMs
	return nowMs
}
