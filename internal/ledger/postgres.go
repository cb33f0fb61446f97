package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists transactions and double-entry postings in PostgreSQL.
// The complete-if-pending operation relies on a conditional UPDATE inside a
// database transaction, so the status flip and the balance credit commit as
// one unit even across concurrent service instances.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (s *PostgresStore) EnsureAccount(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	if err != nil {
		return fmt.Errorf("%w: ensure account: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Balance returns the summed postings for the specified account code.
func (s *PostgresStore) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`
	var balance int64
	if err := s.db.QueryRow(ctx, query, code).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %s not found", code)
		}
		return 0, fmt.Errorf("%w: balance: %v", ErrStoreUnavailable, err)
	}
	return balance, nil
}

// CreateTransaction inserts a pending transaction row. The row must be durable
// before any external charge is created so that no confirmation can ever
// arrive for an untracked transaction.
func (s *PostgresStore) CreateTransaction(ctx context.Context, txn Transaction) error {
	if txn.Amount <= 0 {
		return ErrInvalidAmount
	}
	txID, err := uuid.Parse(txn.ID)
	if err != nil {
		return err
	}
	if txn.Status == "" {
		txn.Status = StatusPending
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx, `INSERT INTO transactions
        (id, user_id, account_code, kind, amount, currency, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txID, txn.UserID, txn.AccountCode, txn.Kind, txn.Amount, txn.Currency, txn.Status, txn.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: create transaction: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetTransaction fetches a transaction by id.
func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrUnknownTransaction
	}
	txn, err := scanTransaction(s.db.QueryRow(ctx, selectTransaction+` WHERE id = $1`, txID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrUnknownTransaction
		}
		return Transaction{}, fmt.Errorf("%w: get transaction: %v", ErrStoreUnavailable, err)
	}
	return txn, nil
}

const selectTransaction = `SELECT id, user_id, account_code, kind, amount, currency, status,
        COALESCE(external_ref, ''), COALESCE(approver_id, ''), created_at, completed_at
        FROM transactions`

// Complete executes the compare-and-swap: the conditional UPDATE succeeds for
// at most one caller per transaction; everyone else reads the terminal row and
// reports AlreadyFinalized. For a completed outcome the wallet credit and the
// suspense debit are posted inside the same database transaction.
func (s *PostgresStore) Complete(ctx context.Context, id string, outcome Outcome, externalRef, approverID string) (CompletionResult, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return CompletionResult{}, ErrUnknownTransaction
	}
	if outcome != OutcomeCompleted && outcome != OutcomeFailed {
		return CompletionResult{}, fmt.Errorf("unrecognized outcome %q", outcome)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	target := StatusCompleted
	if outcome == OutcomeFailed {
		target = StatusFailed
	}

	// external_ref, approver_id and completed_at are recorded only on the
	// completed transition: they are set if and only if status is completed.
	const cas = `UPDATE transactions SET
            status = $2,
            external_ref = CASE WHEN $2 = 'completed' THEN NULLIF($3, '') ELSE external_ref END,
            approver_id = CASE WHEN $2 = 'completed' THEN NULLIF($4, '') ELSE approver_id END,
            completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END
        WHERE id = $1 AND status = 'pending'`
	tag, err := tx.Exec(ctx, cas, txID, target, externalRef, approverID)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("%w: finalize: %v", ErrStoreUnavailable, err)
	}

	if tag.RowsAffected() == 0 {
		// Lost the race or replayed: report whatever terminal state exists.
		txn, err := scanTransaction(tx.QueryRow(ctx, selectTransaction+` WHERE id = $1`, txID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return CompletionResult{}, ErrUnknownTransaction
			}
			return CompletionResult{}, fmt.Errorf("%w: read finalized: %v", ErrStoreUnavailable, err)
		}
		balance, err := balanceForAccountCode(ctx, tx, txn.AccountCode)
		if err != nil {
			return CompletionResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return CompletionResult{}, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
		}
		return CompletionResult{Transaction: txn, Code: CodeAlreadyFinalized, Balance: balance}, nil
	}

	txn, err := scanTransaction(tx.QueryRow(ctx, selectTransaction+` WHERE id = $1`, txID))
	if err != nil {
		return CompletionResult{}, fmt.Errorf("%w: read transaction: %v", ErrStoreUnavailable, err)
	}

	code := CodeFailed
	if outcome == OutcomeCompleted {
		code = CodeCompleted
		walletAccountID, err := accountIDForCode(ctx, tx, txn.AccountCode)
		if err != nil {
			return CompletionResult{}, err
		}
		suspenseAccountID, err := accountIDForCode(ctx, tx, GatewaySuspenseAccountCode)
		if err != nil {
			return CompletionResult{}, err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount)
            VALUES ($1, $2, $3, $4)`, uuid.New(), txID, walletAccountID, txn.Amount); err != nil {
			return CompletionResult{}, fmt.Errorf("%w: credit wallet: %v", ErrStoreUnavailable, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount)
            VALUES ($1, $2, $3, $4)`, uuid.New(), txID, suspenseAccountID, -txn.Amount); err != nil {
			return CompletionResult{}, fmt.Errorf("%w: debit suspense: %v", ErrStoreUnavailable, err)
		}
	}

	// Balance is read inside the same transaction: a failure here rolls the
	// transition back and the sender redelivers.
	balance, err := balanceForAccountCode(ctx, tx, txn.AccountCode)
	if err != nil {
		return CompletionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CompletionResult{}, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}

	return CompletionResult{Transaction: txn, Code: code, Balance: balance}, nil
}

// CancelStale marks pending transactions created before the cutoff as
// cancelled. The same status guard as Complete makes the sweep race-safe
// against a late webhook.
func (s *PostgresStore) CancelStale(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `UPDATE transactions SET status = $1
        WHERE status = $2 AND created_at < $3`,
		StatusCancelled, StatusPending, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: cancel stale: %v", ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var txn Transaction
	var txID uuid.UUID
	var createdAt time.Time
	var completedAt *time.Time
	if err := row.Scan(&txID, &txn.UserID, &txn.AccountCode, &txn.Kind, &txn.Amount,
		&txn.Currency, &txn.Status, &txn.ExternalRef, &txn.ApproverID, &createdAt, &completedAt); err != nil {
		return Transaction{}, err
	}
	txn.ID = txID.String()
	txn.CreatedAt = createdAt.UTC()
	if completedAt != nil {
		utc := completedAt.UTC()
		txn.CompletedAt = &utc
	}
	return txn, nil
}

func balanceForAccountCode(ctx context.Context, tx pgx.Tx, code string) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, code).Scan(&balance); err != nil {
		return 0, fmt.Errorf("%w: balance: %v", ErrStoreUnavailable, err)
	}
	return balance, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s not found", code)
		}
		return uuid.Nil, fmt.Errorf("%w: account lookup: %v", ErrStoreUnavailable, err)
	}
	return id, nil
}
