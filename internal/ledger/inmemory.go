package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type inMemoryStore struct {
	mu           sync.Mutex
	balances     map[string]int64
	transactions map[string]Transaction
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development without Postgres.
func NewInMemory() Store {
	return &inMemoryStore{
		balances:     make(map[string]int64),
		transactions: make(map[string]Transaction),
	}
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.balances[code]; !exists {
		s.balances[code] = 0
	}
	return nil
}

func (s *inMemoryStore) Balance(_ context.Context, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, exists := s.balances[code]
	if !exists {
		return 0, fmt.Errorf("account %s not found", code)
	}
	return balance, nil
}

func (s *inMemoryStore) CreateTransaction(_ context.Context, txn Transaction) error {
	if txn.Amount <= 0 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[txn.ID]; exists {
		return ErrStoreUnavailable
	}
	if txn.Status == "" {
		txn.Status = StatusPending
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.balances[txn.AccountCode]; !exists {
		s.balances[txn.AccountCode] = 0
	}
	s.transactions[txn.ID] = txn
	return nil
}

func (s *inMemoryStore) GetTransaction(_ context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrUnknownTransaction
	}
	return txn, nil
}

// Complete performs the compare-and-swap on status under the store lock: the
// first caller to observe pending applies the transition and, for a completed
// outcome, the balance credit; every later caller gets AlreadyFinalized.
func (s *inMemoryStore) Complete(_ context.Context, id string, outcome Outcome, externalRef, approverID string) (CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[id]
	if !ok {
		return CompletionResult{}, ErrUnknownTransaction
	}

	if txn.Status != StatusPending {
		return CompletionResult{
			Transaction: txn,
			Code:        CodeAlreadyFinalized,
			Balance:     s.balances[txn.AccountCode],
		}, nil
	}

	switch outcome {
	case OutcomeCompleted:
		if !CanTransition(txn.Status, StatusCompleted) {
			return CompletionResult{}, ErrStoreUnavailable
		}
		now := time.Now().UTC()
		txn.Status = StatusCompleted
		txn.ExternalRef = externalRef
		txn.ApproverID = approverID
		txn.CompletedAt = &now
		s.balances[txn.AccountCode] += txn.Amount
		s.balances[GatewaySuspenseAccountCode] -= txn.Amount
		s.transactions[id] = txn
		return CompletionResult{Transaction: txn, Code: CodeCompleted, Balance: s.balances[txn.AccountCode]}, nil
	case OutcomeFailed:
		txn.Status = StatusFailed
		s.transactions[id] = txn
		return CompletionResult{Transaction: txn, Code: CodeFailed, Balance: s.balances[txn.AccountCode]}, nil
	default:
		return CompletionResult{}, ErrStoreUnavailable
	}
}

func (s *inMemoryStore) CancelStale(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for id, txn := range s.transactions {
		if txn.Status == StatusPending && txn.CreatedAt.Before(olderThan) {
			txn.Status = StatusCancelled
			s.transactions[id] = txn
			cancelled++
		}
	}
	return cancelled, nil
}
