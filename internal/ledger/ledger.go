/**
 * @description
 * The transaction core. Every public operation follows the same shape:
 * validate arguments, compute the canonical lock set, acquire all locks in
 * order, re-validate balances under lock, mutate, append history records,
 * release in reverse order, then notify the logging collaborator
 * asynchronously. Expected business failures come back as result codes;
 * only arithmetic faults surface as errors.
 *
 * Fee rules:
 * - Transfer: 2% (200 bps) to central, charged to the sender on top of the
 *   amount, iff amount > floor(senderStartingBalance / 2).
 * - Primary-market buy: buyer fee and issuer fee (both bps) routed to central.
 * - POS charge: company receives exactly 95% (9500 bps); central receives the
 *   true residual so the three-way split always sums to the charged amount.
 *
 * @dependencies
 * - internal/domain, internal/locks, internal/money.
 */

package ledger

import (
	"fmt"
	"time"

	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
	"github.com/TheL321/PrimeBank-sub000/internal/money"
)

const (
	// TransferFeeBps is the fee on large transfers (spent-over-half rule).
	TransferFeeBps = 200

	// PosCompanyShareBps is the company's share of a point-of-sale charge.
	PosCompanyShareBps = 9500
)

// Notifier is the fire-and-forget logging collaborator. Implementations must
// never block the calling operation and can never fail it.
type Notifier interface {
	Log(message string)
	LogValuation(message string)
}

// NopNotifier discards every message. Useful in tests.
type NopNotifier struct{}

func (NopNotifier) Log(string)          {}
func (NopNotifier) LogValuation(string) {}

// Ledger owns all balance mutation. It never touches the network or the file
// system; persistence and delivery are the hosting application's concern.
type Ledger struct {
	accounts *Registry
	locks    *locks.Manager
	notifier Notifier
	now      func() time.Time
}

// New wires a ledger over the given registry and lock manager.
func New(accounts *Registry, lockManager *locks.Manager, notifier Notifier) *Ledger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Ledger{
		accounts: accounts,
		locks:    lockManager,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Accounts exposes the registry for read paths and persistence snapshots.
func (l *Ledger) Accounts() *Registry { return l.accounts }

// Deposit credits an account. No fee.
func (l *Ledger) Deposit(accountID string, amountCents int64) (Result, error) {
	if amountCents <= 0 {
		return Fail(CodeAmountLEZero, "amount must be positive"), nil
	}
	acct, ok := l.accounts.Get(accountID)
	if !ok {
		return Fail(CodeAccountNotFound, "account not found: "+accountID), nil
	}

	g := l.locks.Acquire(accountID)
	defer g.Release()

	newBalance, err := money.Add(acct.BalanceCents, amountCents)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}
	acct.BalanceCents = newBalance
	acct.Record(l.now(), "deposit", "", amountCents, "")
	g.Release()

	l.notifier.Log(fmt.Sprintf("deposit %s to %s", money.FormatUSD(amountCents), accountID))
	return Ok("deposited " + money.FormatUSD(amountCents)), nil
}

// Withdraw debits an account, failing with `insufficient` when the balance
// does not cover the amount.
func (l *Ledger) Withdraw(accountID string, amountCents int64) (Result, error) {
	if amountCents <= 0 {
		return Fail(CodeAmountLEZero, "amount must be positive"), nil
	}
	acct, ok := l.accounts.Get(accountID)
	if !ok {
		return Fail(CodeAccountNotFound, "account not found: "+accountID), nil
	}

	g := l.locks.Acquire(accountID)
	defer g.Release()

	if acct.BalanceCents < amountCents {
		return Fail(CodeInsufficient, "insufficient funds"), nil
	}
	acct.BalanceCents -= amountCents
	acct.Record(l.now(), "withdraw", "", -amountCents, "")
	g.Release()

	l.notifier.Log(fmt.Sprintf("withdraw %s from %s", money.FormatUSD(amountCents), accountID))
	return Ok("withdrew " + money.FormatUSD(amountCents)), nil
}

// Transfer moves amount from one account to another. When the amount exceeds
// half of the sender's balance observed at the start of the locked section, a
// 2% fee is charged to the sender on top and routed to the central account.
// The sender must cover amount + fee or the whole operation fails; there is
// no partial transfer.
func (l *Ledger) Transfer(fromID, toID string, amountCents int64) (Result, error) {
	if amountCents <= 0 {
		return Fail(CodeAmountLEZero, "amount must be positive"), nil
	}
	if fromID == "" || toID == "" || fromID == toID {
		return Fail(CodeInvalidAccounts, "invalid account pair"), nil
	}
	// Central is the fee ledger, never a transfer endpoint. Aliasing it with
	// from or to would make two names mutate one account.
	if fromID == domain.CentralAccountID || toID == domain.CentralAccountID {
		return Fail(CodeInvalidAccounts, "central cannot be a transfer endpoint"), nil
	}

	g := l.locks.NewGuard()
	defer g.Release()
	res, err := l.transferLocked(g, fromID, toID, amountCents)
	g.Release()

	if err == nil && res.OK {
		l.notifier.Log(fmt.Sprintf("transfer %s from %s to %s (fee %s)",
			money.FormatUSD(amountCents), fromID, toID, money.FormatUSD(res.FeeCents)))
	}
	return res, err
}

func (l *Ledger) transferLocked(g *locks.Guard, fromID, toID string, amountCents int64) (Result, error) {
	from, okFrom := l.accounts.Get(fromID)
	to, okTo := l.accounts.Get(toID)
	central, okCentral := l.accounts.Get(domain.CentralAccountID)
	if !okFrom || !okTo || !okCentral {
		return Fail(CodeAccountNotFound, "account not found"), nil
	}

	// Central is always part of the lock set: whether the fee applies is only
	// known once the sender's balance is read under lock.
	g.Lock(fromID, toID, domain.CentralAccountID)

	startingBalance := from.BalanceCents
	var feeCents int64
	if amountCents > startingBalance/2 {
		fee, err := money.MulBps(amountCents, TransferFeeBps)
		if err != nil {
			return Fail(CodeInternalError, "fee overflow"), err
		}
		feeCents = fee
	}
	totalDebit, err := money.Add(amountCents, feeCents)
	if err != nil {
		return Fail(CodeInternalError, "debit overflow"), err
	}
	if startingBalance < totalDebit {
		return Fail(CodeInsufficient, "insufficient funds for amount plus fee"), nil
	}
	newTo, err := money.Add(to.BalanceCents, amountCents)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}
	newCentral, err := money.Add(central.BalanceCents, feeCents)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}

	from.BalanceCents = startingBalance - totalDebit
	to.BalanceCents = newTo
	central.BalanceCents = newCentral

	now := l.now()
	from.Record(now, "transfer_out", toID, -totalDebit, "")
	to.Record(now, "transfer_in", fromID, amountCents, "")
	if feeCents > 0 {
		central.Record(now, "transfer_fee", fromID, feeCents, "")
	}
	return OkWithFee("transferred "+money.FormatUSD(amountCents), feeCents), nil
}

// MarketPrimaryBuy settles a primary-market share purchase: the buyer is
// debited gross + buyer fee, the seller is credited gross - issuer fee, and
// the sum of both fees goes to central.
func (l *Ledger) MarketPrimaryBuy(buyerID, sellerID string, grossCents, buyerFeeBps, issuerFeeBps int64) (Result, error) {
	g := l.locks.NewGuard()
	defer g.Release()
	res, err := l.MarketPrimaryBuyUnder(g, buyerID, sellerID, grossCents, buyerFeeBps, issuerFeeBps)
	g.Release()

	if err == nil && res.OK {
		l.notifier.Log(fmt.Sprintf("primary buy %s from %s by %s (fees %s)",
			money.FormatUSD(grossCents), sellerID, buyerID, money.FormatUSD(res.FeeCents)))
	}
	return res, err
}

// MarketPrimaryBuyUnder is the nested-call form used by the market service,
// which already holds a superset of the lock set on the given guard.
func (l *Ledger) MarketPrimaryBuyUnder(g *locks.Guard, buyerID, sellerID string, grossCents, buyerFeeBps, issuerFeeBps int64) (Result, error) {
	if grossCents <= 0 {
		return Fail(CodeAmountLEZero, "amount must be positive"), nil
	}
	if buyerID == "" || sellerID == "" || buyerID == sellerID {
		return Fail(CodeInvalidAccounts, "invalid account pair"), nil
	}
	if buyerID == domain.CentralAccountID || sellerID == domain.CentralAccountID {
		return Fail(CodeInvalidAccounts, "central cannot trade shares"), nil
	}
	buyer, okBuyer := l.accounts.Get(buyerID)
	seller, okSeller := l.accounts.Get(sellerID)
	central, okCentral := l.accounts.Get(domain.CentralAccountID)
	if !okBuyer || !okSeller || !okCentral {
		return Fail(CodeAccountNotFound, "account not found"), nil
	}

	g.Lock(buyerID, sellerID, domain.CentralAccountID)

	buyerFee, err := money.MulBps(grossCents, buyerFeeBps)
	if err != nil {
		return Fail(CodeInternalError, "fee overflow"), err
	}
	issuerFee, err := money.MulBps(grossCents, issuerFeeBps)
	if err != nil {
		return Fail(CodeInternalError, "fee overflow"), err
	}
	totalDebit, err := money.Add(grossCents, buyerFee)
	if err != nil {
		return Fail(CodeInternalError, "debit overflow"), err
	}
	if buyer.BalanceCents < totalDebit {
		return Fail(CodeInsufficient, "insufficient funds for amount plus fee"), nil
	}
	sellerCredit := grossCents - issuerFee
	totalFees, err := money.Add(buyerFee, issuerFee)
	if err != nil {
		return Fail(CodeInternalError, "fee overflow"), err
	}
	newSeller, err := money.Add(seller.BalanceCents, sellerCredit)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}
	newCentral, err := money.Add(central.BalanceCents, totalFees)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}

	buyer.BalanceCents -= totalDebit
	seller.BalanceCents = newSeller
	central.BalanceCents = newCentral

	now := l.now()
	buyer.Record(now, "market_buy", sellerID, -totalDebit, "")
	seller.Record(now, "market_sell", buyerID, sellerCredit, "")
	central.Record(now, "market_fee", buyerID, totalFees, "")
	return OkWithFee("purchase settled for "+money.FormatUSD(grossCents), totalFees), nil
}

// POSCharge debits the buyer in full, credits the company exactly 95% of the
// amount, and credits the central account the remainder. The residual is the
// true difference, not a separately rounded 5%, so the split always sums
// exactly to the charged amount.
func (l *Ledger) POSCharge(buyerID, companyID string, amountCents int64) (Result, error) {
	if amountCents <= 0 {
		return Fail(CodeAmountLEZero, "amount must be positive"), nil
	}
	if buyerID == "" || companyID == "" || buyerID == companyID {
		return Fail(CodeInvalidAccounts, "invalid account pair"), nil
	}
	if buyerID == domain.CentralAccountID || companyID == domain.CentralAccountID {
		return Fail(CodeInvalidAccounts, "central cannot be charged"), nil
	}
	buyer, okBuyer := l.accounts.Get(buyerID)
	company, okCompany := l.accounts.Get(companyID)
	central, okCentral := l.accounts.Get(domain.CentralAccountID)
	if !okBuyer || !okCompany || !okCentral {
		return Fail(CodeAccountNotFound, "account not found"), nil
	}

	g := l.locks.NewGuard()
	defer g.Release()
	g.Lock(buyerID, companyID, domain.CentralAccountID)

	if buyer.BalanceCents < amountCents {
		return Fail(CodeInsufficient, "insufficient funds"), nil
	}
	companyShare, err := money.MulBps(amountCents, PosCompanyShareBps)
	if err != nil {
		return Fail(CodeInternalError, "share overflow"), err
	}
	residual := amountCents - companyShare
	newCompany, err := money.Add(company.BalanceCents, companyShare)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}
	newCentral, err := money.Add(central.BalanceCents, residual)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}

	buyer.BalanceCents -= amountCents
	company.BalanceCents = newCompany
	central.BalanceCents = newCentral

	now := l.now()
	buyer.Record(now, "pos_charge", companyID, -amountCents, "")
	company.Record(now, "pos_sale", buyerID, companyShare, "")
	central.Record(now, "pos_cut", companyID, residual, "")
	g.Release()

	l.notifier.Log(fmt.Sprintf("pos charge %s by %s at %s", money.FormatUSD(amountCents), buyerID, companyID))
	return OkWithFee("charged "+money.FormatUSD(amountCents), residual), nil
}

// ApplyCashbackToBuyer credits min(requested, central balance) to the buyer,
// funded from central. A shortfall is capped rather than failed, with an
// operator warning; a zero central balance makes the operation a no-op with
// the `central_insufficient` code.
func (l *Ledger) ApplyCashbackToBuyer(buyerID string, requestedCents int64) (Result, error) {
	if requestedCents <= 0 {
		return Fail(CodeAmountLEZero, "amount must be positive"), nil
	}
	if buyerID == domain.CentralAccountID {
		return Fail(CodeInvalidAccounts, "central cannot receive cashback"), nil
	}
	buyer, okBuyer := l.accounts.Get(buyerID)
	central, okCentral := l.accounts.Get(domain.CentralAccountID)
	if !okBuyer || !okCentral {
		return Fail(CodeAccountNotFound, "account not found"), nil
	}

	g := l.locks.NewGuard()
	defer g.Release()
	g.Lock(buyerID, domain.CentralAccountID)

	if central.BalanceCents == 0 {
		return Fail(CodeCentralInsufficient, "central bank cannot fund cashback"), nil
	}
	granted := requestedCents
	capped := false
	if central.BalanceCents < granted {
		granted = central.BalanceCents
		capped = true
	}
	newBuyer, err := money.Add(buyer.BalanceCents, granted)
	if err != nil {
		return Fail(CodeInternalError, "balance overflow"), err
	}

	central.BalanceCents -= granted
	buyer.BalanceCents = newBuyer

	now := l.now()
	buyer.Record(now, "cashback", domain.CentralAccountID, granted, "")
	central.Record(now, "cashback_out", buyerID, -granted, "")
	g.Release()

	if capped {
		l.notifier.Log(fmt.Sprintf("WARN cashback capped: requested %s, granted %s to %s",
			money.FormatUSD(requestedCents), money.FormatUSD(granted), buyerID))
	} else {
		l.notifier.Log(fmt.Sprintf("cashback %s to %s", money.FormatUSD(granted), buyerID))
	}
	return Ok("cashback granted " + money.FormatUSD(granted)), nil
}

// CentralWithdraw removes funds from the central account, recording which
// operator asked for it.
func (l *Ledger) CentralWithdraw(adminLabel string, amountCents int64) (Result, error) {
	if amountCents <= 0 {
		return Fail(CodeAmountLEZero, "amount must be positive"), nil
	}
	central, ok := l.accounts.Get(domain.CentralAccountID)
	if !ok {
		return Fail(CodeAccountNotFound, "central account not found"), nil
	}

	g := l.locks.Acquire(domain.CentralAccountID)
	defer g.Release()

	if central.BalanceCents < amountCents {
		return Fail(CodeInsufficient, "insufficient central funds"), nil
	}
	central.BalanceCents -= amountCents
	central.Record(l.now(), "central_withdraw", "", -amountCents, "by "+adminLabel)
	g.Release()

	l.notifier.Log(fmt.Sprintf("central withdrawal %s by %s", money.FormatUSD(amountCents), adminLabel))
	return Ok("withdrew " + money.FormatUSD(amountCents) + " from central"), nil
}
