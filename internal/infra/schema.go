package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Transactions are append-only: rows are
// finalized in place but never deleted.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
        id UUID PRIMARY KEY,
        code TEXT NOT NULL UNIQUE
    )`,
	`CREATE TABLE IF NOT EXISTS wallets (
        id UUID PRIMARY KEY,
        owner_id TEXT NOT NULL UNIQUE,
        account_code TEXT NOT NULL,
        currency TEXT NOT NULL,
        status TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id UUID PRIMARY KEY,
        user_id TEXT NOT NULL,
        account_code TEXT NOT NULL,
        kind TEXT NOT NULL,
        amount BIGINT NOT NULL CHECK (amount > 0),
        currency TEXT NOT NULL,
        status TEXT NOT NULL,
        external_ref TEXT,
        approver_id TEXT,
        created_at TIMESTAMPTZ NOT NULL,
        completed_at TIMESTAMPTZ
    )`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status_created
        ON transactions (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS entries (
        id UUID PRIMARY KEY,
        transaction_id UUID NOT NULL REFERENCES transactions (id),
        account_id UUID NOT NULL REFERENCES accounts (id),
        amount BIGINT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_entries_account ON entries (account_id)`,
}

// EnsureSchema creates the tables the ledger store depends on.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
