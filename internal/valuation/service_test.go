package valuation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/TheL321/PrimeBank-sub000/internal/company"
	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/ledger"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
)

const (
	dayMs  = int64(24 * time.Hour / time.Millisecond)
	weekMs = 7 * dayMs
)

type persisterStub struct {
	mu    sync.Mutex
	saved []domain.Company
	err   error
}

func (p *persisterStub) SaveCompany(_ context.Context, c domain.Company) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, c)
	return p.err
}

type fixture struct {
	companies *company.Registry
	service   *Service
	persister *persisterStub
	nowMs     int64
}

func newFixture() *fixture {
	f := &fixture{persister: &persisterStub{}, nowMs: 1_700_000_000_000}
	lm := locks.NewManager()
	f.companies = company.NewRegistry(lm)
	f.companies.SetClock(f.clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.companies, lm, f.persister, ledger.NopNotifier{}, logger)
	f.service.SetClock(f.clock)
	return f
}

func (f *fixture) clock() time.Time { return time.UnixMilli(f.nowMs) }

func (f *fixture) approvedCompany(t *testing.T, salesCents int64) *domain.Company {
	t.Helper()
	c, err := f.companies.Apply("u:owner", "Widgets Inc", "WIDG", "")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if _, err := f.companies.Approve(c.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if salesCents > 0 {
		f.companies.AddSales(c.ID, salesCents)
	}
	return c
}

func TestFirstValuationIsSixTimesSales(t *testing.T) {
	f := newFixture()
	c := f.approvedCompany(t, 1000)

	// One day short of the eight-day first window: nothing due yet.
	f.nowMs += 7 * dayMs
	f.service.RunOnce(context.Background())
	if c.ValuationCurrentCents != 0 || c.LastValuationAt != 0 {
		t.Fatalf("valuation ran before the first window: %d at %d", c.ValuationCurrentCents, c.LastValuationAt)
	}

	f.nowMs += dayMs
	f.service.RunOnce(context.Background())
	if c.ValuationCurrentCents != 6000 {
		t.Fatalf("first valuation = %d, want 6000", c.ValuationCurrentCents)
	}
	if c.SalesWeekCents != 0 {
		t.Fatalf("sales window not reset: %d", c.SalesWeekCents)
	}
	if wantDue := c.ApprovedAt + 8*dayMs; c.LastValuationAt != wantDue {
		t.Fatalf("LastValuationAt = %d, want due time %d", c.LastValuationAt, wantDue)
	}
}

func TestSubsequentValuationSmoothsPrevious(t *testing.T) {
	f := newFixture()
	c := f.approvedCompany(t, 1000)

	f.nowMs += 8 * dayMs
	f.service.RunOnce(context.Background())
	if c.ValuationCurrentCents != 6000 {
		t.Fatalf("first valuation = %d, want 6000", c.ValuationCurrentCents)
	}

	f.companies.AddSales(c.ID, 500)
	f.nowMs += weekMs
	f.service.RunOnce(context.Background())
	// (6*500 + 2*6000) / 3 = 5000.
	if c.ValuationCurrentCents != 5000 {
		t.Fatalf("second valuation = %d, want 5000", c.ValuationCurrentCents)
	}
}

func TestCatchUpZeroesSalesAfterFirstStep(t *testing.T) {
	f := newFixture()
	c := f.approvedCompany(t, 1000)

	// Three weeks past the first due date: four steps are owed.
	f.nowMs += 8*dayMs + 3*weekMs
	f.service.RunOnce(context.Background())

	// 6000, then 2/3 decay with zero sales: 4000, 2666, 1777.
	want := []int64{6000, 4000, 2666, 1777}
	if len(c.ValuationHistoryCents) != len(want) {
		t.Fatalf("history = %v, want %d entries", c.ValuationHistoryCents, len(want))
	}
	for i, w := range want {
		if c.ValuationHistoryCents[i] != w {
			t.Fatalf("history[%d] = %d, want %d (full: %v)", i, c.ValuationHistoryCents[i], w, c.ValuationHistoryCents)
		}
	}
	if c.ValuationCurrentCents != 1777 {
		t.Fatalf("current = %d, want 1777", c.ValuationCurrentCents)
	}
	if wantAt := c.ApprovedAt + 8*dayMs + 3*weekMs; c.LastValuationAt != wantAt {
		t.Fatalf("LastValuationAt = %d, want %d", c.LastValuationAt, wantAt)
	}
}

func TestCatchUpIsBounded(t *testing.T) {
	f := newFixture()
	c := f.approvedCompany(t, 1000)

	// Two years behind (104 owed steps): one run executes at most 52.
	f.nowMs += 8*dayMs + 103*weekMs
	f.service.RunOnce(context.Background())

	if got := c.LastValuationAt - c.ApprovedAt; got != 8*dayMs+51*weekMs {
		t.Fatalf("after one run LastValuationAt advanced %d ms, want %d (52 steps)", got, 8*dayMs+51*weekMs)
	}
	// A second run finishes the backlog.
	f.service.RunOnce(context.Background())
	if got := c.LastValuationAt - c.ApprovedAt; got != 8*dayMs+103*weekMs {
		t.Fatalf("after two runs LastValuationAt advanced %d ms, want %d", got, 8*dayMs+103*weekMs)
	}
}

func TestHistoryCappedToMostRecent(t *testing.T) {
	f := newFixture()
	c := f.approvedCompany(t, 1000)

	f.nowMs += 8*dayMs + 39*weekMs // 40 steps in one run
	f.service.RunOnce(context.Background())

	if len(c.ValuationHistoryCents) != domain.ValuationHistoryCap {
		t.Fatalf("history length = %d, want %d", len(c.ValuationHistoryCents), domain.ValuationHistoryCap)
	}
	last := c.ValuationHistoryCents[len(c.ValuationHistoryCents)-1]
	if last != c.ValuationCurrentCents {
		t.Fatalf("newest history entry %d != current %d", last, c.ValuationCurrentCents)
	}
}

func TestUnapprovedCompaniesAreSkipped(t *testing.T) {
	f := newFixture()
	c, err := f.companies.Apply("u:owner", "Pending Co", "PEND", "")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	f.companies.AddSales(c.ID, 1000)

	f.nowMs += 30 * dayMs
	f.service.RunOnce(context.Background())
	if c.ValuationCurrentCents != 0 || len(c.ValuationHistoryCents) != 0 {
		t.Fatalf("unapproved company was valued: %+v", c)
	}
}

func TestNegativeIntermediateFlooredAtZero(t *testing.T) {
	got, err := nextValuation(-500, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("nextValuation(-500) = %d, want 0", got)
	}
}

func TestBackwardsClockIsClamped(t *testing.T) {
	f := newFixture()
	c := f.approvedCompany(t, 1000)

	f.nowMs += 8 * dayMs
	f.service.RunOnce(context.Background())
	first := c.ValuationCurrentCents

	// The wall clock steps back a day. The engine must not regress or rerun.
	f.nowMs -= dayMs
	f.service.RunOnce(context.Background())
	if c.ValuationCurrentCents != first {
		t.Fatalf("valuation changed after clock step back: %d -> %d", first, c.ValuationCurrentCents)
	}
	if len(c.ValuationHistoryCents) != 1 {
		t.Fatalf("history grew after clock step back: %v", c.ValuationHistoryCents)
	}
}

func TestValuationsArePersisted(t *testing.T) {
	f := newFixture()
	c := f.approvedCompany(t, 1000)

	f.nowMs += 8 * dayMs
	f.service.RunOnce(context.Background())

	f.persister.mu.Lock()
	defer f.persister.mu.Unlock()
	if len(f.persister.saved) != 1 {
		t.Fatalf("persister called %d times, want 1", len(f.persister.saved))
	}
	saved := f.persister.saved[0]
	if saved.ID != c.ID || saved.ValuationCurrentCents != 6000 {
		t.Fatalf("persisted snapshot = %+v", saved)
	}

	// No step due means no persistence traffic.
	f.service.RunOnce(context.Background())
	if len(f.persister.saved) != 1 {
		t.Fatalf("persister called on an idle run")
	}
}
