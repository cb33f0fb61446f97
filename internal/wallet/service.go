package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/casino-royal/cashier/internal/ledger"
)

const statusActive = "active"

// ErrCurrencyMismatch reports a deposit currency that differs from the
// currency the owner's wallet was provisioned with.
var ErrCurrencyMismatch = errors.New("wallet currency mismatch")

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Store
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Store) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// EnsureForOwner returns the owner's wallet, provisioning one (and its ledger
// account) on first use. Deposits call this before opening a transaction.
func (s *Service) EnsureForOwner(ctx context.Context, ownerID, currency string) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}

	existing, err := s.repo.GetByOwner(ctx, ownerID)
	if err == nil {
		if currency != "" && existing.Currency != currency {
			return Wallet{}, fmt.Errorf("%w: wallet holds %s, requested %s", ErrCurrencyMismatch, existing.Currency, currency)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	walletID := uuid.New().String()
	accountCode := fmt.Sprintf("wallet:%s", walletID)

	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Wallet{}, err
	}

	if currency == "" {
		currency = "USD"
	}

	w := Wallet{
		ID:          walletID,
		OwnerID:     ownerID,
		AccountCode: accountCode,
		Currency:    currency,
		Status:      statusActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, w); err != nil {
		// Lost a provisioning race: another request created the wallet first.
		if got, lookupErr := s.repo.GetByOwner(ctx, ownerID); lookupErr == nil {
			if got.Currency != currency {
				return Wallet{}, fmt.Errorf("%w: wallet holds %s, requested %s", ErrCurrencyMismatch, got.Currency, currency)
			}
			return got, nil
		}
		return Wallet{}, err
	}

	return w, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, w.AccountCode)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: amount, AsOf: time.Now().UTC()}, nil
}
