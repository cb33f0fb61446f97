package deposit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/casino-royal/cashier/internal/gateway"
	"github.com/casino-royal/cashier/internal/ledger"
	"github.com/casino-royal/cashier/internal/logging"
	"github.com/casino-royal/cashier/internal/wallet"
)

func newTestService(t *testing.T, gw gateway.Gateway) (*Service, ledger.Store) {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), store)
	svc, err := NewService(ctx, store, wallets, gw, nil, logging.Discard(), RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestOpenThenCompleteCreditsOnce(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, gateway.StaticGateway{})

	userID := uuid.NewString()
	opened, err := svc.Open(ctx, OpenInput{UserID: userID, Amount: 10_000, Currency: "USD"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Transaction.Status != ledger.StatusPending {
		t.Fatalf("expected pending, got %s", opened.Transaction.Status)
	}
	if opened.Charge.HostedURL == "" {
		t.Fatal("expected a hosted payment URL")
	}

	res, err := svc.Complete(ctx, CompleteInput{
		TransactionID: opened.Transaction.ID,
		Outcome:       ledger.OutcomeCompleted,
		ExternalRef:   "ext-1",
		RawAmount:     10_000,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Code != ledger.CodeCompleted {
		t.Fatalf("expected CodeCompleted, got %s", res.Code)
	}
	if res.Balance != 10_000 {
		t.Fatalf("expected balance 10000, got %d", res.Balance)
	}

	// Duplicate webhook delivery.
	res, err = svc.Complete(ctx, CompleteInput{
		TransactionID: opened.Transaction.ID,
		Outcome:       ledger.OutcomeCompleted,
		ExternalRef:   "ext-1",
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Code != ledger.CodeAlreadyFinalized {
		t.Fatalf("expected CodeAlreadyFinalized, got %s", res.Code)
	}
	balance, err := store.Balance(ctx, opened.Transaction.AccountCode)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10_000 {
		t.Fatalf("replay must not credit again, got %d", balance)
	}
}

type flakyGateway struct {
	failures int
	calls    int
}

func (g *flakyGateway) CreateCharge(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeDescriptor, error) {
	g.calls++
	if g.calls <= g.failures {
		return gateway.ChargeDescriptor{}, gateway.ErrGatewayUnavailable
	}
	return gateway.StaticGateway{}.CreateCharge(ctx, req)
}

type rejectingGateway struct{}

func (rejectingGateway) CreateCharge(context.Context, gateway.ChargeRequest) (gateway.ChargeDescriptor, error) {
	return gateway.ChargeDescriptor{}, gateway.ErrGatewayRejected
}

func TestOpenRetriesOnUnavailable(t *testing.T) {
	gw := &flakyGateway{failures: 2}
	svc, _ := newTestService(t, gw)

	opened, err := svc.Open(context.Background(), OpenInput{UserID: uuid.NewString(), Amount: 500, Currency: "USD"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if gw.calls != 3 {
		t.Fatalf("expected 3 gateway calls, got %d", gw.calls)
	}
	if opened.Transaction.Status != ledger.StatusPending {
		t.Fatalf("expected pending after retried open, got %s", opened.Transaction.Status)
	}
}

func TestOpenMarksFailedWhenGatewayExhausted(t *testing.T) {
	gw := &flakyGateway{failures: 10}
	svc, store := newTestService(t, gw)

	_, err := svc.Open(context.Background(), OpenInput{UserID: uuid.NewString(), Amount: 500, Currency: "USD"})
	if !errors.Is(err, gateway.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if gw.calls != 3 {
		t.Fatalf("expected bounded retries (3 calls), got %d", gw.calls)
	}

	assertSingleFailedTransaction(t, store)
}

func TestOpenDoesNotRetryRejection(t *testing.T) {
	svc, store := newTestService(t, rejectingGateway{})

	_, err := svc.Open(context.Background(), OpenInput{UserID: uuid.NewString(), Amount: 500, Currency: "USD"})
	if !errors.Is(err, gateway.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}

	assertSingleFailedTransaction(t, store)
}

// assertSingleFailedTransaction verifies the audit trail survives a gateway
// failure: the opened row exists and is failed, and a late completion event
// can no longer credit it.
func assertSingleFailedTransaction(t *testing.T, store ledger.Store) {
	t.Helper()
	cancelled, err := store.CancelStale(context.Background(), time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("cancel stale: %v", err)
	}
	if cancelled != 0 {
		t.Fatalf("expected the failed row to be terminal, but %d rows were still pending", cancelled)
	}
}

func TestOpenValidation(t *testing.T) {
	svc, _ := newTestService(t, gateway.StaticGateway{})
	ctx := context.Background()

	if _, err := svc.Open(ctx, OpenInput{UserID: uuid.NewString(), Amount: 0, Currency: "USD"}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Open(ctx, OpenInput{UserID: uuid.NewString(), Amount: 100, Currency: "DOGE"}); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}

	userID := uuid.NewString()
	if _, err := svc.Open(ctx, OpenInput{UserID: userID, Amount: 100, Currency: "USD"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Open(ctx, OpenInput{UserID: userID, Amount: 100, Currency: "EUR"}); !errors.Is(err, wallet.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestCompleteFailedOutcome(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, gateway.StaticGateway{})

	opened, err := svc.Open(ctx, OpenInput{UserID: uuid.NewString(), Amount: 700, Currency: "USD"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	res, err := svc.Complete(ctx, CompleteInput{TransactionID: opened.Transaction.ID, Outcome: ledger.OutcomeFailed})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if res.Code != ledger.CodeFailed {
		t.Fatalf("expected CodeFailed, got %s", res.Code)
	}
	balance, err := store.Balance(ctx, opened.Transaction.AccountCode)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("failed outcome must not credit, got %d", balance)
	}
}

func TestCompleteUnknownTransaction(t *testing.T) {
	svc, _ := newTestService(t, gateway.StaticGateway{})
	_, err := svc.Complete(context.Background(), CompleteInput{TransactionID: uuid.NewString(), Outcome: ledger.OutcomeCompleted})
	if !errors.Is(err, ledger.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
}
