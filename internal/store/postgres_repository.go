/**
 * @description
 * PostgreSQL implementation of the Repository interface. Accounts and
 * companies live in two tables with JSONB columns for the nested collections
 * (transaction history, holdings, valuation history); rows are upserted so a
 * snapshot can be written repeatedly.
 *
 * Expected schema:
 *
 *   CREATE TABLE accounts (
 *     id            TEXT PRIMARY KEY,
 *     type          TEXT NOT NULL,
 *     owner_id      TEXT NOT NULL DEFAULT '',
 *     balance_cents BIGINT NOT NULL,
 *     history       JSONB NOT NULL DEFAULT '[]'
 *   );
 *
 *   CREATE TABLE companies (
 *     id                      TEXT PRIMARY KEY,
 *     owner_id                TEXT NOT NULL,
 *     name                    TEXT NOT NULL,
 *     short_name              TEXT NOT NULL,
 *     description             TEXT NOT NULL DEFAULT '',
 *     approved                BOOLEAN NOT NULL DEFAULT FALSE,
 *     applied_at              BIGINT NOT NULL DEFAULT 0,
 *     approved_at             BIGINT NOT NULL DEFAULT 0,
 *     sales_week_cents        BIGINT NOT NULL DEFAULT 0,
 *     sales_last7_cents       BIGINT NOT NULL DEFAULT 0,
 *     valuation_current_cents BIGINT NOT NULL DEFAULT 0,
 *     last_valuation_at       BIGINT NOT NULL DEFAULT 0,
 *     valuation_history       JSONB NOT NULL DEFAULT '[]',
 *     holdings                JSONB NOT NULL DEFAULT '{}',
 *     listed_shares           INT NOT NULL DEFAULT 0,
 *     seller_listings         JSONB NOT NULL DEFAULT '{}'
 *   );
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheL321/PrimeBank-sub000/internal/domain"
)

// PostgresRepository is the PostgreSQL-backed Repository implementation.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository over an existing pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LoadAccounts reads every persisted account snapshot.
func (r *PostgresRepository) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, type, owner_id, balance_cents, history FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var (
			acct        domain.Account
			accountType string
			historyJSON []byte
		)
		if err := rows.Scan(&acct.ID, &accountType, &acct.OwnerID, &acct.BalanceCents, &historyJSON); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acct.Type = domain.AccountType(accountType)
		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &acct.History); err != nil {
				return nil, fmt.Errorf("decode history for %s: %w", acct.ID, err)
			}
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// SaveAccounts upserts every account in one transaction so a snapshot is
// all-or-nothing.
func (r *PostgresRepository) SaveAccounts(ctx context.Context, accounts []domain.Account) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO accounts (id, type, owner_id, balance_cents, history)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			balance_cents = EXCLUDED.balance_cents,
			history = EXCLUDED.history
	`
	for _, acct := range accounts {
		historyJSON, err := json.Marshal(acct.History)
		if err != nil {
			return fmt.Errorf("encode history for %s: %w", acct.ID, err)
		}
		if _, err := tx.Exec(ctx, query, acct.ID, string(acct.Type), acct.OwnerID, acct.BalanceCents, historyJSON); err != nil {
			return fmt.Errorf("upsert account %s: %w", acct.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveCompany upserts one company record.
func (r *PostgresRepository) SaveCompany(ctx context.Context, c domain.Company) error {
	historyJSON, err := json.Marshal(c.ValuationHistoryCents)
	if err != nil {
		return fmt.Errorf("encode valuation history for %s: %w", c.ID, err)
	}
	holdingsJSON, err := json.Marshal(c.Holdings)
	if err != nil {
		return fmt.Errorf("encode holdings for %s: %w", c.ID, err)
	}
	listingsJSON, err := json.Marshal(c.SellerListings)
	if err != nil {
		return fmt.Errorf("encode seller listings for %s: %w", c.ID, err)
	}

	const query = `
		INSERT INTO companies (
			id, owner_id, name, short_name, description, approved,
			applied_at, approved_at, sales_week_cents, sales_last7_cents,
			valuation_current_cents, last_valuation_at, valuation_history,
			holdings, listed_shares, seller_listings
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			short_name = EXCLUDED.short_name,
			description = EXCLUDED.description,
			approved = EXCLUDED.approved,
			approved_at = EXCLUDED.approved_at,
			sales_week_cents = EXCLUDED.sales_week_cents,
			sales_last7_cents = EXCLUDED.sales_last7_cents,
			valuation_current_cents = EXCLUDED.valuation_current_cents,
			last_valuation_at = EXCLUDED.last_valuation_at,
			valuation_history = EXCLUDED.valuation_history,
			holdings = EXCLUDED.holdings,
			listed_shares = EXCLUDED.listed_shares,
			seller_listings = EXCLUDED.seller_listings
	`
	_, err = r.db.Exec(ctx, query,
		c.ID, c.OwnerID, c.Name, c.ShortName, c.Description, c.Approved,
		c.AppliedAt, c.ApprovedAt, c.SalesWeekCents, c.SalesLast7DaysCents,
		c.ValuationCurrentCents, c.LastValuationAt, historyJSON,
		holdingsJSON, c.ListedShares, listingsJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", c.ID, err)
	}
	return nil
}

// LoadCompanies reads every persisted company.
func (r *PostgresRepository) LoadCompanies(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, name, short_name, description, approved,
		       applied_at, approved_at, sales_week_cents, sales_last7_cents,
		       valuation_current_cents, last_valuation_at, valuation_history,
		       holdings, listed_shares, seller_listings
		FROM companies
	`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var companies []domain.Company
	for rows.Next() {
		var (
			c            domain.Company
			historyJSON  []byte
			holdingsJSON []byte
			listingsJSON []byte
		)
		if err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Name, &c.ShortName, &c.Description, &c.Approved,
			&c.AppliedAt, &c.ApprovedAt, &c.SalesWeekCents, &c.SalesLast7DaysCents,
			&c.ValuationCurrentCents, &c.LastValuationAt, &historyJSON,
			&holdingsJSON, &c.ListedShares, &listingsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &c.ValuationHistoryCents); err != nil {
				return nil, fmt.Errorf("decode valuation history for %s: %w", c.ID, err)
			}
		}
		if len(holdingsJSON) > 0 {
			if err := json.Unmarshal(holdingsJSON, &c.Holdings); err != nil {
				return nil, fmt.Errorf("decode holdings for %s: %w", c.ID, err)
			}
		}
		if len(listingsJSON) > 0 {
			if err := json.Unmarshal(listingsJSON, &c.SellerListings); err != nil {
				return nil, fmt.Errorf("decode seller listings for %s: %w", c.ID, err)
			}
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}
