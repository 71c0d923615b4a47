/**
 * @description
 * The persistence collaborator contract. The core decides *when* state is
 * worth serializing (after mutations, on shutdown, on a schedule); the
 * repository decides *how*. Two implementations exist: PostgreSQL (pgx) and
 * a JSON snapshot file for single-node deployments.
 */

package store

import (
	"context"
	"errors"

	"github.com/TheL321/PrimeBank-sub000/internal/domain"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("store: not found")

// Repository is the contract between the ledger core and its persistence.
type Repository interface {
	LoadAccounts(ctx context.Context) ([]domain.Account, error)
	SaveAccounts(ctx context.Context, accounts []domain.Account) error
	SaveCompany(ctx context.Context, c domain.Company) error
	LoadCompanies(ctx context.Context) ([]domain.Company, error)
}
