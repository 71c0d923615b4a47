/**
 * @description
 * Core domain models for the ledger: accounts and their transaction records.
 *
 * @notes
 * - Account identifiers are opaque strings supplied by the caller. The hosting
 *   application uses the convention "u:<uuid>" for personal accounts,
 *   "c:<uuid>" for company accounts and "central" for the system account.
 * - Balances are `int64` cents to avoid floating-point inaccuracies with
 *   financial data. A balance is never negative after an operation completes.
 * - Accounts carry no lock of their own; all mutation happens while the
 *   account's key is held in the lock manager.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// CentralAccountID is the fixed identifier of the system-owned account that
// accumulates fees and funds cashback.
const CentralAccountID = "central"

// AccountType is a closed tag describing who an account belongs to.
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountCompany  AccountType = "company"
	AccountCentral  AccountType = "central"
)

// TransactionRecord is one append-only history entry on an account.
type TransactionRecord struct {
	ID           uuid.UUID `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"` // e.g. 'deposit', 'transfer_out', 'pos_charge'
	Counterparty string    `json:"counterparty,omitempty"`
	AmountCents  int64     `json:"amount_cents"`
	Description  string    `json:"description,omitempty"`
}

// Account is a balance holder. ID, Type and OwnerID are immutable after
// creation; BalanceCents and History are mutated only under the account's lock.
type Account struct {
	ID           string              `json:"id"`
	Type         AccountType         `json:"type"`
	OwnerID      string              `json:"owner_id,omitempty"` // empty only for the central account
	BalanceCents int64               `json:"balance_cents"`
	History      []TransactionRecord `json:"history,omitempty"`
}

// Record appends a history entry. Callers must hold the account's lock.
func (a *Account) Record(now time.Time, txType, counterparty string, amountCents int64, description string) {
	a.History = append(a.History, TransactionRecord{
		ID:           uuid.New(),
		Timestamp:    now,
		Type:         txType,
		Counterparty: counterparty,
		AmountCents:  amountCents,
		Description:  description,
	})
}
