package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownTransaction indicates a completion event referenced a transaction
	// id with no matching row. Logged and dropped, never retried.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrInvalidAmount occurs when a posting amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrStoreUnavailable indicates the store could not execute the operation.
	// Callers surface it as retryable; the upstream sender redelivers.
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)

// GatewaySuspenseAccountCode is the ledger account balancing deposits confirmed
// by the external processor but not yet settled to the house.
const GatewaySuspenseAccountCode = "suspense:gateway"

// Status is the closed set of transaction states. A transaction leaves pending
// exactly once and never returns.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Kind distinguishes the direction of a transaction.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Outcome is the canonical terminal result carried by a completion event.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// transitions is the explicit state machine: pending is the only non-terminal
// state. Anything not listed is rejected.
var transitions = map[Status][]Status{
	StatusPending: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Transaction is the durable record of a deposit or withdrawal. Rows are
// append-only: created pending, finalized at most once, never deleted.
type Transaction struct {
	ID          string
	UserID      string
	AccountCode string
	Kind        Kind
	Amount      int64
	Currency    string
	Status      Status
	ExternalRef string
	ApproverID  string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// CompletionCode classifies the result of a Complete call.
type CompletionCode string

const (
	// CodeCompleted means this call won the transition and the credit was applied.
	CodeCompleted CompletionCode = "completed"
	// CodeFailed means this call won the transition to failed; no credit.
	CodeFailed CompletionCode = "failed"
	// CodeAlreadyFinalized means the transaction had already left pending.
	// This is the idempotent success path, not an error.
	CodeAlreadyFinalized CompletionCode = "already_finalized"
)

// CompletionResult captures the outcome of the complete-if-pending operation.
type CompletionResult struct {
	Transaction Transaction
	Code        CompletionCode
	Balance     int64
}

// Store is the contract implemented by ledger backends. Complete must be
// atomic: the status flip and the balance credit either both happen or neither
// does, and two concurrent calls for the same id resolve so that exactly one
// observes the pending state.
type Store interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	CreateTransaction(ctx context.Context, txn Transaction) error
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	Complete(ctx context.Context, id string, outcome Outcome, externalRef, approverID string) (CompletionResult, error)
	CancelStale(ctx context.Context, olderThan time.Time) (int, error)
}
