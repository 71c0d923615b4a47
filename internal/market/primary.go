/**
 * @description
 * Primary share market, layered on the ledger. The owner lists shares from
 * their allotment (never past the majority line), and buyers purchase them at
 * the valuation-derived price with a 2.5% buyer fee and a 5% issuer fee, both
 * routed to the central account by the ledger.
 *
 * Lock discipline: BuyShares computes the full canonical key set (buyer,
 * owner, central, company) up front and acquires it on one guard; the nested
 * ledger settlement re-enters the keys it needs on the same guard.
 */

package market

import (
	"fmt"
	"log/slog"

	"github.com/TheL321/PrimeBank-sub000/internal/company"
	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/ledger"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
	"github.com/TheL321/PrimeBank-sub000/internal/money"
)

const (
	// BuyerFeeBps is the primary-market fee charged on top of the gross.
	BuyerFeeBps = 250

	// IssuerFeeBps is the primary-market fee deducted from the seller credit.
	IssuerFeeBps = 500
)

// PrimaryService issues and settles primary-market trades.
type PrimaryService struct {
	ledger    *ledger.Ledger
	companies *company.Registry
	locks     *locks.Manager
	logger    *slog.Logger
}

// NewPrimaryService wires the market over the ledger and company registry.
func NewPrimaryService(l *ledger.Ledger, companies *company.Registry, lockManager *locks.Manager, logger *slog.Logger) *PrimaryService {
	return &PrimaryService{ledger: l, companies: companies, locks: lockManager, logger: logger}
}

// ListShares puts part of the owner's allotment up for sale. Only the
// recorded owner may list; listing requires a nonzero valuation; the grant is
// capped so that total listed inventory stays at or below 50 and the owner
// could still retain 51 shares if everything listed sold. Returns the number
// of shares actually listed.
func (s *PrimaryService) ListShares(ownerID, companyID string, shares int) (int, ledger.Result) {
	if shares <= 0 {
		return 0, ledger.Fail(ledger.CodeAmountLEZero, "share count must be positive")
	}
	c, ok := s.companies.Get(companyID)
	if !ok {
		return 0, ledger.Fail(ledger.CodeCompanyNotFound, "company not found: "+companyID)
	}

	g := s.locks.Acquire(companyID)
	defer g.Release()

	if c.OwnerID != ownerID {
		return 0, ledger.Fail(ledger.CodeNotOwner, "only the company owner may list shares")
	}
	if c.ValuationCurrentCents <= 0 {
		return 0, ledger.Fail(ledger.CodeTradingBlocked, "trading is blocked until the first valuation")
	}

	granted := shares
	if room := domain.MaxListedShares - c.ListedShares; granted > room {
		granted = room
	}
	if spare := c.Holdings[ownerID] - domain.MajorityShares - c.ListedShares; granted > spare {
		granted = spare
	}
	if granted <= 0 {
		return 0, ledger.Fail(ledger.CodeListingUnavailable, "no shares can be listed")
	}
	c.ListedShares += granted
	return granted, ledger.Ok(fmt.Sprintf("listed %d share(s)", granted))
}

// BuyShares settles a primary purchase: price per share is
// floor(valuation / 101); a zero price blocks trading. Money moves through
// Ledger.MarketPrimaryBuyUnder, then the shares move from the owner's
// holdings to the buyer's and the listed inventory shrinks. The majority
// invariant (owner retains >= 51) is enforced before any money moves and
// re-checked defensively after the holdings move.
func (s *PrimaryService) BuyShares(buyerID, companyID string, shares int) (ledger.Result, error) {
	if shares <= 0 {
		return ledger.Fail(ledger.CodeAmountLEZero, "share count must be positive"), nil
	}
	c, ok := s.companies.Get(companyID)
	if !ok {
		return ledger.Fail(ledger.CodeCompanyNotFound, "company not found: "+companyID), nil
	}
	if buyerID == "" || buyerID == c.OwnerID {
		return ledger.Fail(ledger.CodeInvalidAccounts, "invalid buyer"), nil
	}

	g := s.locks.NewGuard()
	defer g.Release()
	g.Lock(buyerID, c.OwnerID, domain.CentralAccountID, companyID)

	pricePerShare := c.PricePerShareCents()
	if pricePerShare <= 0 {
		return ledger.Fail(ledger.CodeTradingBlocked, "trading is blocked until the first valuation"), nil
	}
	if c.ListedShares < shares {
		return ledger.Fail(ledger.CodeListingUnavailable, fmt.Sprintf("only %d share(s) listed", c.ListedShares)), nil
	}
	if c.Holdings[c.OwnerID]-shares < domain.MajorityShares {
		// Upstream listing caps should make this unreachable; refuse before
		// any ledger mutation.
		return ledger.Fail(ledger.CodeMajorityViolation, "sale would break the owner's majority"), nil
	}

	gross, err := money.Mul(pricePerShare, int64(shares))
	if err != nil {
		return ledger.Fail(ledger.CodeInternalError, "gross overflow"), err
	}

	res, err := s.ledger.MarketPrimaryBuyUnder(g, buyerID, c.OwnerID, gross, BuyerFeeBps, IssuerFeeBps)
	if err != nil || !res.OK {
		return res, err
	}

	c.Holdings[c.OwnerID] -= shares
	c.Holdings[buyerID] += shares
	c.ListedShares -= shares

	if c.Holdings[c.OwnerID] < domain.MajorityShares {
		// Money already moved; unwind the share move and refuse to commit a
		// state that corrupts the majority invariant.
		c.Holdings[c.OwnerID] += shares
		c.Holdings[buyerID] -= shares
		if c.Holdings[buyerID] == 0 {
			delete(c.Holdings, buyerID)
		}
		c.ListedShares += shares
		s.logger.Error("majority invariant violated after settlement",
			"company_id", companyID, "buyer_id", buyerID, "shares", shares)
		return ledger.Fail(ledger.CodeInternalError, "majority invariant violated"), fmt.Errorf("market: majority invariant violated for company %s", companyID)
	}

	return ledger.OkWithFee(
		fmt.Sprintf("bought %d share(s) of %s for %s", shares, c.ShortName, money.FormatUSD(gross)),
		res.FeeCents,
	), nil
}
