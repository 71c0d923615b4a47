/**
 * @description
 * Company model: the subject of the valuation recurrence and the primary
 * share market. A company owns a ledger account under the same "c:<uuid>"
 * identifier, so holding that key in the lock manager serializes both its
 * balance and the fields below.
 *
 * @notes
 * - Share supply is fixed at issuance: the owner receives all 101 shares when
 *   the application is approved, and must retain at least 51 at all times
 *   (the majority rule).
 * - ValuationHistoryCents keeps the most recent 26 weekly valuations; older
 *   entries are evicted from the front.
 */

package domain

import (
	"errors"
	"strings"
)

const (
	// TotalShares is the fixed share supply granted to the owner on approval.
	TotalShares = 101

	// MajorityShares is the minimum stake the founding owner must retain.
	MajorityShares = 51

	// MaxListedShares caps the primary-market inventory per company.
	MaxListedShares = 50

	// ValuationHistoryCap bounds the rolling valuation history.
	ValuationHistoryCap = 26
)

// ErrInvalidShortName reports a short name outside the 2-8 alphanumeric rule.
var ErrInvalidShortName = errors.New("company: short name must be 2-8 alphanumeric characters")

// Company is mutated by the valuation service (valuation fields) and the
// primary market service (holdings, listed shares), always under the
// company's key in the lock manager.
type Company struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"` // the owner's personal account id
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Description string `json:"description,omitempty"`

	Approved   bool  `json:"approved"`
	AppliedAt  int64 `json:"applied_at"`  // epoch ms
	ApprovedAt int64 `json:"approved_at"` // epoch ms; day 0 for valuation scheduling

	SalesWeekCents      int64 `json:"sales_week_cents"`
	SalesLast7DaysCents int64 `json:"sales_last_7_days_cents"`

	ValuationCurrentCents int64   `json:"valuation_current_cents"`
	LastValuationAt       int64   `json:"last_valuation_at"` // epoch ms
	ValuationHistoryCents []int64 `json:"valuation_history_cents,omitempty"`

	Holdings       map[string]int `json:"holdings,omitempty"` // holder account id -> shares
	ListedShares   int            `json:"listed_shares"`
	SellerListings map[string]int `json:"seller_listings,omitempty"`
}

// PricePerShareCents derives the primary-market share price from the current
// valuation. Zero means trading is blocked.
func (c *Company) PricePerShareCents() int64 {
	return c.ValuationCurrentCents / TotalShares
}

// EligibleForValuation reports whether the valuation engine should schedule
// this company at all.
func (c *Company) EligibleForValuation() bool {
	return c.Approved && c.ApprovedAt > 0
}

// NormalizeShortName validates and case-normalizes a company short name:
// 2-8 alphanumeric characters, stored upper-cased.
func NormalizeShortName(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || len(trimmed) > 8 {
		return "", ErrInvalidShortName
	}
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return "", ErrInvalidShortName
		}
	}
	return strings.ToUpper(trimmed), nil
}
