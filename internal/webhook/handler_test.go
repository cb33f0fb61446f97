package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/casino-royal/cashier/internal/deposit"
	"github.com/casino-royal/cashier/internal/gateway"
	"github.com/casino-royal/cashier/internal/ledger"
	"github.com/casino-royal/cashier/internal/logging"
	"github.com/casino-royal/cashier/internal/wallet"
)

const testSecret = "shh-gateway"

type fixture struct {
	app      *fiber.App
	deposits *deposit.Service
	store    ledger.Store
	verifier HMACVerifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), store)
	deposits, err := deposit.NewService(ctx, store, wallets, gateway.StaticGateway{}, nil, logging.Discard(), deposit.RetryPolicy{Attempts: 1, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new deposit service: %v", err)
	}

	verifier := NewHMACVerifier(testSecret)
	handler := NewHandler(deposits, verifier, logging.Discard())

	app := fiber.New()
	app.Post("/webhook/payment-completed", handler.PaymentCompleted)

	return fixture{app: app, deposits: deposits, store: store, verifier: verifier}
}

func (f fixture) openDeposit(t *testing.T, amount int64) ledger.Transaction {
	t.Helper()
	opened, err := f.deposits.Open(context.Background(), deposit.OpenInput{
		UserID:   uuid.NewString(),
		Amount:   amount,
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("open deposit: %v", err)
	}
	return opened.Transaction
}

func (f fixture) post(t *testing.T, body, signature string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/payment-completed", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func eventBody(txnID, externalRef, status string, amount int64) string {
	return fmt.Sprintf(`{"transactionId":%q,"externalRef":%q,"amount":%d,"status":%q}`, txnID, externalRef, amount, status)
}

func TestWebhookCompletesDeposit(t *testing.T) {
	f := newFixture(t)
	txn := f.openDeposit(t, 10_000)

	body := eventBody(txn.ID, "ext-1", "completed", 10_000)
	status, decoded := f.post(t, body, f.verifier.Sign([]byte(body)))
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if decoded["received"] != true {
		t.Fatalf("expected received:true, got %v", decoded)
	}

	balance, err := f.store.Balance(context.Background(), txn.AccountCode)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10_000 {
		t.Fatalf("expected balance 10000, got %d", balance)
	}
	final, _ := f.store.GetTransaction(context.Background(), txn.ID)
	if final.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.ExternalRef != "ext-1" {
		t.Fatalf("expected external ref, got %q", final.ExternalRef)
	}
}

func TestWebhookDuplicateDeliveryCreditsOnce(t *testing.T) {
	f := newFixture(t)
	txn := f.openDeposit(t, 10_000)
	body := eventBody(txn.ID, "ext-1", "completed", 10_000)
	sig := f.verifier.Sign([]byte(body))

	for i := 0; i < 2; i++ {
		status, decoded := f.post(t, body, sig)
		if status != fiber.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, status)
		}
		if decoded["received"] != true {
			t.Fatalf("delivery %d: expected received:true", i)
		}
	}

	balance, _ := f.store.Balance(context.Background(), txn.AccountCode)
	if balance != 10_000 {
		t.Fatalf("duplicate delivery must credit once, got %d", balance)
	}
}

func TestWebhookUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	body := eventBody(uuid.NewString(), "ext-99", "completed", 100)

	status, _ := f.post(t, body, f.verifier.Sign([]byte(body)))
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	txn := f.openDeposit(t, 5_000)
	body := eventBody(txn.ID, "ext-1", "completed", 5_000)

	status, _ := f.post(t, body, "deadbeef")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	// The transaction must be untouched: no lookup path mutates state.
	got, _ := f.store.GetTransaction(context.Background(), txn.ID)
	if got.Status != ledger.StatusPending {
		t.Fatalf("expected pending after rejected webhook, got %s", got.Status)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	f := newFixture(t)
	body := eventBody(uuid.NewString(), "ext", "completed", 1)
	status, _ := f.post(t, body, "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestWebhookRejectsUnrecognizedStatus(t *testing.T) {
	f := newFixture(t)
	txn := f.openDeposit(t, 5_000)
	body := eventBody(txn.ID, "ext-1", "processing", 5_000)

	status, _ := f.post(t, body, f.verifier.Sign([]byte(body)))
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for non-terminal status, got %d", status)
	}
}

func TestWebhookFailedOutcome(t *testing.T) {
	f := newFixture(t)
	txn := f.openDeposit(t, 5_000)
	body := eventBody(txn.ID, "ext-1", "failed", 5_000)

	status, _ := f.post(t, body, f.verifier.Sign([]byte(body)))
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	balance, _ := f.store.Balance(context.Background(), txn.AccountCode)
	if balance != 0 {
		t.Fatalf("failed outcome must not credit, got %d", balance)
	}
	got, _ := f.store.GetTransaction(context.Background(), txn.ID)
	if got.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ExternalRef != "" {
		t.Fatalf("failed transaction must not record an external ref, got %q", got.ExternalRef)
	}
	if got.CompletedAt != nil {
		t.Fatal("failed transaction must not record a completion time")
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	f := newFixture(t)
	body := `{"transactionId":`
	status, _ := f.post(t, body, f.verifier.Sign([]byte(body)))
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}
