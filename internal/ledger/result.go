/**
 * @description
 * Structured operation results. Expected business conditions (insufficient
 * funds, missing account, blocked trading) are reported as machine-readable
 * reason codes, never as Go errors; callers decide user-facing messaging.
 */

package ledger

// Code is a machine-readable reason code for an operation outcome.
type Code string

const (
	CodeOK                  Code = "ok"
	CodeAmountLEZero        Code = "amount_le_zero"
	CodeInvalidAccounts     Code = "invalid_accounts"
	CodeAccountNotFound     Code = "account_not_found"
	CodeInsufficient        Code = "insufficient"
	CodeCentralInsufficient Code = "central_insufficient"
	CodeTradingBlocked      Code = "trading_blocked"
	CodeNotOwner            Code = "not_owner"
	CodeListingUnavailable  Code = "listing_unavailable"
	CodeMajorityViolation   Code = "majority_violation"
	CodeCompanyNotFound     Code = "company_not_found"
	CodeRateLimited         Code = "rate_limited"
	CodeInternalError       Code = "internal_error"
)

// Result describes the outcome of one ledger or market operation.
type Result struct {
	OK         bool   `json:"ok"`
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	FeeApplied bool   `json:"fee_applied,omitempty"`
	FeeCents   int64  `json:"fee_cents,omitempty"`
}

// Ok builds a success result.
func Ok(message string) Result {
	return Result{OK: true, Code: CodeOK, Message: message}
}

// OkWithFee builds a success result for a fee-bearing operation.
func OkWithFee(message string, feeCents int64) Result {
	return Result{OK: true, Code: CodeOK, Message: message, FeeApplied: feeCents > 0, FeeCents: feeCents}
}

// Fail builds a failure result with the given reason code.
func Fail(code Code, message string) Result {
	return Result{OK: false, Code: code, Message: message}
}
