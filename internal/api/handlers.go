/**
 * @description
 * HTTP handlers for the ledger service. Handlers only decode requests, call
 * the orchestration service and encode results; every business outcome
 * (including failures like insufficient funds) comes back as a structured
 * result with a machine-readable reason code, mapped onto an HTTP status.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/ledger, internal/money.
 */

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TheL321/PrimeBank-sub000/internal/app"
	"github.com/TheL321/PrimeBank-sub000/internal/company"
	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/ledger"
	"github.com/TheL321/PrimeBank-sub000/internal/money"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
	logger  *slog.Logger
}

// NewLedgerHandlers wires the handler set.
func NewLedgerHandlers(service *app.Service, logger *slog.Logger) *LedgerHandlers {
	return &LedgerHandlers{service: service, logger: logger}
}

// amountRequest accepts either integer cents or a human string ("$12.34").
type amountRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount,omitempty"`
}

func (r amountRequest) cents() (int64, error) {
	if strings.TrimSpace(r.Amount) != "" {
		return money.ParseCents(r.Amount)
	}
	return r.AmountCents, nil
}

type ensureAccountRequest struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	OwnerID             string `json:"owner_id,omitempty"`
	InitialBalanceCents int64  `json:"initial_balance_cents,omitempty"`
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	amountRequest
}

type posChargeRequest struct {
	Buyer   string `json:"buyer"`
	Company string `json:"company"`
	amountRequest
}

type cashbackRequest struct {
	Buyer string `json:"buyer"`
	amountRequest
}

type centralWithdrawRequest struct {
	Admin string `json:"admin"`
	amountRequest
}

type companyApplicationRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Description string `json:"description,omitempty"`
}

type sharesRequest struct {
	Owner  string `json:"owner,omitempty"`
	Buyer  string `json:"buyer,omitempty"`
	Shares int    `json:"shares"`
}

// EnsureAccountHandler creates an account if absent (idempotent).
func (h *LedgerHandlers) EnsureAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req ensureAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		h.writeError(w, http.StatusBadRequest, "account id is required")
		return
	}
	if req.InitialBalanceCents < 0 {
		h.writeError(w, http.StatusBadRequest, "initial balance must not be negative")
		return
	}
	accountType := domain.AccountType(req.Type)
	switch accountType {
	case domain.AccountPersonal, domain.AccountCompany, domain.AccountCentral:
	case "":
		accountType = domain.AccountPersonal
	default:
		h.writeError(w, http.StatusBadRequest, "unknown account type")
		return
	}
	acct := h.service.EnsureAccount(req.ID, accountType, req.OwnerID, req.InitialBalanceCents)
	h.writeJSON(w, http.StatusOK, acct)
}

// GetAccountHandler returns an account snapshot.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	acct, ok := h.service.GetAccount(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "account not found")
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

// DepositHandler credits an account.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	cents, err := req.cents()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := h.service.Deposit(chi.URLParam(r, "id"), cents)
	h.writeResult(w, res, err)
}

// WithdrawHandler debits an account.
func (h *LedgerHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	cents, err := req.cents()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := h.service.Withdraw(chi.URLParam(r, "id"), cents)
	h.writeResult(w, res, err)
}

// TransferHandler moves money between two accounts.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	cents, err := req.cents()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := h.service.Transfer(req.From, req.To, cents)
	h.writeResult(w, res, err)
}

// POSChargeHandler runs a point-of-sale charge.
func (h *LedgerHandlers) POSChargeHandler(w http.ResponseWriter, r *http.Request) {
	var req posChargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	cents, err := req.cents()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := h.service.POSCharge(r.Context(), req.Buyer, req.Company, cents)
	h.writeResult(w, res, err)
}

// CashbackHandler credits a buyer from the central account.
func (h *LedgerHandlers) CashbackHandler(w http.ResponseWriter, r *http.Request) {
	var req cashbackRequest
	if !h.decode(w, r, &req) {
		return
	}
	cents, err := req.cents()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := h.service.ApplyCashback(r.Context(), req.Buyer, cents)
	h.writeResult(w, res, err)
}

// CentralWithdrawHandler removes money from the central account (admin).
func (h *LedgerHandlers) CentralWithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req centralWithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	cents, err := req.cents()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := h.service.CentralWithdraw(req.Admin, cents)
	h.writeResult(w, res, err)
}

// ApplyCompanyHandler files a company application.
func (h *LedgerHandlers) ApplyCompanyHandler(w http.ResponseWriter, r *http.Request) {
	var req companyApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.ApplyCompany(r.Context(), req.OwnerID, req.Name, req.ShortName, req.Description)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidShortName) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("company application failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "could not file application")
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

// ApproveCompanyHandler approves an application (admin).
func (h *LedgerHandlers) ApproveCompanyHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.ApproveCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, company.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "company not found")
		case errors.Is(err, company.ErrAlreadyApproved):
			h.writeError(w, http.StatusConflict, "company already approved")
		default:
			h.logger.Error("company approval failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "could not approve company")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// GetCompanyHandler returns a company snapshot.
func (h *LedgerHandlers) GetCompanyHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := h.service.GetCompany(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "company not found")
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// ListSharesHandler lists owner shares on the primary market.
func (h *LedgerHandlers) ListSharesHandler(w http.ResponseWriter, r *http.Request) {
	var req sharesRequest
	if !h.decode(w, r, &req) {
		return
	}
	granted, res := h.service.ListShares(r.Context(), req.Owner, chi.URLParam(r, "id"), req.Shares)
	h.writeJSON(w, statusForResult(res), struct {
		ledger.Result
		GrantedShares int `json:"granted_shares"`
	}{res, granted})
}

// BuySharesHandler settles a primary-market purchase.
func (h *LedgerHandlers) BuySharesHandler(w http.ResponseWriter, r *http.Request) {
	var req sharesRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.BuyShares(r.Context(), req.Buyer, chi.URLParam(r, "id"), req.Shares)
	h.writeResult(w, res, err)
}

// SnapshotHandler serializes the full state through the repository (admin).
func (h *LedgerHandlers) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SaveSnapshot(r.Context()); err != nil {
		h.logger.Error("snapshot failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *LedgerHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *LedgerHandlers) writeResult(w http.ResponseWriter, res ledger.Result, err error) {
	if err != nil {
		h.logger.Error("operation failed", "code", res.Code, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, statusForResult(res), res)
}

// statusForResult maps reason codes onto HTTP statuses. Business failures are
// client-visible conditions, not server errors.
func statusForResult(res ledger.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Code {
	case ledger.CodeAmountLEZero, ledger.CodeInvalidAccounts:
		return http.StatusBadRequest
	case ledger.CodeAccountNotFound, ledger.CodeCompanyNotFound:
		return http.StatusNotFound
	case ledger.CodeInsufficient, ledger.CodeCentralInsufficient,
		ledger.CodeTradingBlocked, ledger.CodeListingUnavailable,
		ledger.CodeMajorityViolation:
		return http.StatusUnprocessableEntity
	case ledger.CodeNotOwner:
		return http.StatusForbidden
	case ledger.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
