package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/casino-royal/cashier/internal/ledger"
)

func TestEnsureForOwnerProvisionsOnce(t *testing.T) {
	repo := NewMemoryRepository()
	store := ledger.NewInMemory()
	svc := NewService(repo, store)

	ctx := context.Background()
	ownerID := uuid.NewString()

	first, err := svc.EnsureForOwner(ctx, ownerID, "USD")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if first.OwnerID != ownerID || first.Status != statusActive {
		t.Fatalf("unexpected wallet %+v", first)
	}

	second, err := svc.EnsureForOwner(ctx, ownerID, "USD")
	if err != nil {
		t.Fatalf("ensure wallet again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same wallet for owner, got %s and %s", first.ID, second.ID)
	}
}

func TestEnsureForOwnerRejectsCurrencyMismatch(t *testing.T) {
	repo := NewMemoryRepository()
	store := ledger.NewInMemory()
	svc := NewService(repo, store)

	ctx := context.Background()
	ownerID := uuid.NewString()

	if _, err := svc.EnsureForOwner(ctx, ownerID, "USD"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	if _, err := svc.EnsureForOwner(ctx, ownerID, "EUR"); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}

	// An empty currency means the caller has no preference.
	w, err := svc.EnsureForOwner(ctx, ownerID, "")
	if err != nil {
		t.Fatalf("ensure wallet without currency: %v", err)
	}
	if w.Currency != "USD" {
		t.Fatalf("expected USD wallet, got %s", w.Currency)
	}
}

func TestBalanceReadsLedger(t *testing.T) {
	repo := NewMemoryRepository()
	store := ledger.NewInMemory()
	svc := NewService(repo, store)

	ctx := context.Background()
	w, err := svc.EnsureForOwner(ctx, uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	ledger.SeedBalance(store, w.AccountCode, 2_500)

	balance, err := svc.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 2_500 {
		t.Fatalf("expected balance 2500, got %d", balance.Amount)
	}
}
