/**
 * @description
 * This file contains the orchestration layer for the ledger engine. The
 * `Service` struct is what the API handlers and the scheduler talk to: it
 * coordinates the ledger core, the company registry, the primary market and
 * the persistence collaborator, and applies the optional rate limiter on the
 * abuse-prone operations (POS charges, cashback).
 *
 * The core packages never persist or rate-limit on their own; those policies
 * live here so the ledger stays free of I/O while holding locks.
 *
 * @dependencies
 * - internal/company, internal/domain, internal/ledger, internal/market,
 *   internal/store: core packages and persistence contract.
 */

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TheL321/PrimeBank-sub000/internal/company"
	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/ledger"
	"github.com/TheL321/PrimeBank-sub000/internal/market"
	"github.com/TheL321/PrimeBank-sub000/internal/store"
)

// Service wires the core against its collaborators.
type Service struct {
	logger    *slog.Logger
	ledger    *ledger.Ledger
	companies *company.Registry
	market    *market.PrimaryService
	repo      store.Repository

	limiter             RateLimiter
	posLimitPerMin      int
	cashbackLimitPerMin int
}

// NewService creates the orchestration layer. repo may be nil in tests.
func NewService(l *ledger.Ledger, companies *company.Registry, primaryMarket *market.PrimaryService, repo store.Repository, logger *slog.Logger) *Service {
	return &Service{
		logger:    logger,
		ledger:    l,
		companies: companies,
		market:    primaryMarket,
		repo:      repo,
	}
}

// SetRateLimiter enables distributed rate limiting on POS and cashback.
func (s *Service) SetRateLimiter(limiter RateLimiter, posLimitPerMin, cashbackLimitPerMin int) {
	s.limiter = limiter
	s.posLimitPerMin = posLimitPerMin
	s.cashbackLimitPerMin = cashbackLimitPerMin
}

// LoadState restores accounts and companies from the repository, then makes
// sure the central account exists. Called once at boot, before any operation
// threads exist.
func (s *Service) LoadState(ctx context.Context) error {
	if s.repo != nil {
		accounts, err := s.repo.LoadAccounts(ctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		s.ledger.Accounts().Restore(accounts)

		companies, err := s.repo.LoadCompanies(ctx)
		if err != nil {
			return fmt.Errorf("load companies: %w", err)
		}
		s.companies.Restore(companies)
	}
	s.ledger.Accounts().Ensure(domain.CentralAccountID, domain.AccountCentral, "", 0)
	return nil
}

// SaveSnapshot serializes the full account state through the repository.
func (s *Service) SaveSnapshot(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveAccounts(ctx, s.ledger.Accounts().Snapshot()); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	for _, c := range s.companies.Snapshot() {
		if err := s.repo.SaveCompany(ctx, c); err != nil {
			return fmt.Errorf("save company %s: %w", c.ID, err)
		}
	}
	return nil
}

// EnsureAccount creates an account if absent; the existing account is
// returned unchanged otherwise.
func (s *Service) EnsureAccount(id string, accountType domain.AccountType, ownerID string, initialBalanceCents int64) domain.Account {
	s.ledger.Accounts().Ensure(id, accountType, ownerID, initialBalanceCents)
	acct, _ := s.ledger.Accounts().Copy(id)
	return acct
}

// GetAccount returns a detached copy of the account, or false when missing.
func (s *Service) GetAccount(id string) (domain.Account, bool) {
	return s.ledger.Accounts().Copy(id)
}

// Deposit, Withdraw, Transfer and CentralWithdraw pass straight through to
// the ledger core.

func (s *Service) Deposit(accountID string, amountCents int64) (ledger.Result, error) {
	return s.ledger.Deposit(accountID, amountCents)
}

func (s *Service) Withdraw(accountID string, amountCents int64) (ledger.Result, error) {
	return s.ledger.Withdraw(accountID, amountCents)
}

func (s *Service) Transfer(fromID, toID string, amountCents int64) (ledger.Result, error) {
	return s.ledger.Transfer(fromID, toID, amountCents)
}

func (s *Service) CentralWithdraw(adminLabel string, amountCents int64) (ledger.Result, error) {
	return s.ledger.CentralWithdraw(adminLabel, amountCents)
}

// POSCharge runs the point-of-sale split and, on success, records the sale
// into the company's current valuation window.
func (s *Service) POSCharge(ctx context.Context, buyerID, companyID string, amountCents int64) (ledger.Result, error) {
	if res, limited := s.consumeLimit(ctx, "pos", buyerID, s.posLimitPerMin); limited {
		return res, nil
	}
	res, err := s.ledger.POSCharge(buyerID, companyID, amountCents)
	if err != nil || !res.OK {
		return res, err
	}
	s.companies.AddSales(companyID, amountCents)
	return res, nil
}

// ApplyCashback credits the buyer from the central account, capped at what
// central can fund.
func (s *Service) ApplyCashback(ctx context.Context, buyerID string, requestedCents int64) (ledger.Result, error) {
	if res, limited := s.consumeLimit(ctx, "cashback", buyerID, s.cashbackLimitPerMin); limited {
		return res, nil
	}
	return s.ledger.ApplyCashbackToBuyer(buyerID, requestedCents)
}

// ApplyCompany files a company application and provisions its ledger account.
func (s *Service) ApplyCompany(ctx context.Context, ownerID, name, shortName, description string) (domain.Company, error) {
	c, err := s.companies.Apply(ownerID, name, shortName, description)
	if err != nil {
		return domain.Company{}, err
	}
	s.ledger.Accounts().Ensure(c.ID, domain.AccountCompany, ownerID, 0)
	s.persistCompany(ctx, c.ID)
	return *c, nil
}

// ApproveCompany approves an application, granting the owner the full share
// allotment and starting the valuation schedule.
func (s *Service) ApproveCompany(ctx context.Context, companyID string) (domain.Company, error) {
	c, err := s.companies.Approve(companyID)
	if err != nil {
		return domain.Company{}, err
	}
	s.persistCompany(ctx, companyID)
	return *c, nil
}

// GetCompany returns a detached copy of the company, or false when missing.
func (s *Service) GetCompany(id string) (domain.Company, bool) {
	return s.companies.Copy(id)
}

// ListShares lists part of the owner's allotment on the primary market.
func (s *Service) ListShares(ctx context.Context, ownerID, companyID string, shares int) (int, ledger.Result) {
	granted, res := s.market.ListShares(ownerID, companyID, shares)
	if res.OK {
		s.persistCompany(ctx, companyID)
	}
	return granted, res
}

// BuyShares settles a primary-market purchase.
func (s *Service) BuyShares(ctx context.Context, buyerID, companyID string, shares int) (ledger.Result, error) {
	res, err := s.market.BuyShares(buyerID, companyID, shares)
	if err == nil && res.OK {
		s.persistCompany(ctx, companyID)
	}
	return res, err
}

// consumeLimit returns a rate_limited result when the subject exceeded the
// per-minute budget. Limiter failures only log; abuse protection must never
// take the ledger down.
func (s *Service) consumeLimit(ctx context.Context, scope, subject string, limit int) (ledger.Result, bool) {
	if s.limiter == nil || limit <= 0 {
		return ledger.Result{}, false
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, scope, subject, limit, time.Minute)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", "scope", scope, "error", err)
		return ledger.Result{}, false
	}
	if count > limit {
		return ledger.Fail(ledger.CodeRateLimited,
			fmt.Sprintf("rate limit exceeded, retry in %ds", retryAfter)), true
	}
	return ledger.Result{}, false
}

// persistCompany writes one company through the repository, best-effort. A
// failed write is logged and retried by the next snapshot.
func (s *Service) persistCompany(ctx context.Context, companyID string) {
	if s.repo == nil {
		return
	}
	for _, c := range s.companies.Snapshot() {
		if c.ID == companyID {
			if err := s.repo.SaveCompany(ctx, c); err != nil {
				s.logger.Error("company persist failed", "company_id", companyID, "error", err)
			}
			return
		}
	}
}

// NewAccountID mints a fresh personal account id under the caller-facing
// "u:<uuid>" convention.
func NewAccountID() string { return "u:" + uuid.NewString() }
