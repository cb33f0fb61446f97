package deposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/casino-royal/cashier/internal/gateway"
	"github.com/casino-royal/cashier/internal/ledger"
	"github.com/casino-royal/cashier/internal/notification"
	"github.com/casino-royal/cashier/internal/wallet"
)

// ErrUnsupportedCurrency indicates the requested currency is not accepted.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

var supportedCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
}

// RetryPolicy bounds charge-creation retries against the gateway. Only
// ErrGatewayUnavailable is retried, always reusing the already-opened
// transaction id so a retry can never open a second pending row.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Service coordinates the deposit lifecycle: it opens pending transactions,
// creates the hosted charge, and applies canonical completion events to the
// ledger exactly once.
type Service struct {
	ledger   ledger.Store
	wallets  *wallet.Service
	gateway  gateway.Gateway
	notifier notification.Notifier
	logger   *slog.Logger
	retry    RetryPolicy
}

// NewService prepares a deposit service, ensuring the gateway suspense
// account exists.
func NewService(ctx context.Context, store ledger.Store, wallets *wallet.Service, gw gateway.Gateway, notifier notification.Notifier, logger *slog.Logger, retry RetryPolicy) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if gw == nil {
		gw = gateway.StaticGateway{}
	}
	if retry.Attempts <= 0 {
		retry.Attempts = 3
	}
	if retry.Backoff <= 0 {
		retry.Backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.EnsureAccount(ctx, ledger.GatewaySuspenseAccountCode); err != nil {
		return nil, err
	}
	return &Service{ledger: store, wallets: wallets, gateway: gw, notifier: notifier, logger: logger, retry: retry}, nil
}

// OpenInput captures the data required to start a deposit.
type OpenInput struct {
	UserID   string
	Amount   int64
	Currency string
}

// OpenResult pairs the pending transaction with the charge the user pays.
type OpenResult struct {
	Transaction ledger.Transaction
	Charge      gateway.ChargeDescriptor
}

// Open creates the pending transaction row, durably, before the charge is
// created: no processor confirmation can ever reference an untracked id. If
// charge creation fails after retries the transaction moves to failed and is
// kept for the audit trail.
func (s *Service) Open(ctx context.Context, input OpenInput) (OpenResult, error) {
	if input.Amount <= 0 {
		return OpenResult{}, ledger.ErrInvalidAmount
	}
	if !supportedCurrencies[input.Currency] {
		return OpenResult{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, input.Currency)
	}

	w, err := s.wallets.EnsureForOwner(ctx, input.UserID, input.Currency)
	if err != nil {
		return OpenResult{}, err
	}

	txn := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		AccountCode: w.AccountCode,
		Kind:        ledger.KindDeposit,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Status:      ledger.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.ledger.CreateTransaction(ctx, txn); err != nil {
		return OpenResult{}, err
	}

	charge, err := s.createChargeWithRetry(ctx, gateway.ChargeRequest{
		UserID:      input.UserID,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Description: fmt.Sprintf("deposit %s", txn.ID),
	})
	if err != nil {
		if _, failErr := s.ledger.Complete(ctx, txn.ID, ledger.OutcomeFailed, "", ""); failErr != nil {
			s.logger.Error("mark failed after gateway error", "transaction_id", txn.ID, "error", failErr)
		}
		return OpenResult{}, err
	}

	s.logger.Info("deposit opened",
		"transaction_id", txn.ID,
		"user_id", input.UserID,
		"amount", input.Amount,
		"currency", input.Currency,
		"charge_id", charge.ChargeID)

	return OpenResult{Transaction: txn, Charge: charge}, nil
}

func (s *Service) createChargeWithRetry(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeDescriptor, error) {
	var lastErr error
	backoff := s.retry.Backoff
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		charge, err := s.gateway.CreateCharge(ctx, req)
		if err == nil {
			return charge, nil
		}
		lastErr = err
		if !errors.Is(err, gateway.ErrGatewayUnavailable) {
			return gateway.ChargeDescriptor{}, err
		}
		if attempt == s.retry.Attempts {
			break
		}
		s.logger.Warn("charge creation retry", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return gateway.ChargeDescriptor{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return gateway.ChargeDescriptor{}, lastErr
}

// CompleteInput is the canonical completion event applied to the ledger.
type CompleteInput struct {
	TransactionID string
	Outcome       ledger.Outcome
	ExternalRef   string
	ApproverID    string
	// RawAmount is the amount reported by the processor. Advisory only: the
	// ledger always credits the stored amount.
	RawAmount int64
}

// Complete applies a completion event through the store's atomic
// complete-if-pending operation. Replays and races resolve to
// AlreadyFinalized, which is a success, not an error.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (ledger.CompletionResult, error) {
	res, err := s.ledger.Complete(ctx, input.TransactionID, input.Outcome, input.ExternalRef, input.ApproverID)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownTransaction) {
			s.logger.Warn("completion for unknown transaction", "transaction_id", input.TransactionID, "external_ref", input.ExternalRef)
		}
		return ledger.CompletionResult{}, err
	}

	if input.RawAmount > 0 && input.RawAmount != res.Transaction.Amount {
		s.logger.Warn("processor amount mismatch",
			"transaction_id", input.TransactionID,
			"stored_amount", res.Transaction.Amount,
			"reported_amount", input.RawAmount)
	}

	switch res.Code {
	case ledger.CodeCompleted:
		s.logger.Info("deposit completed",
			"transaction_id", res.Transaction.ID,
			"user_id", res.Transaction.UserID,
			"amount", res.Transaction.Amount,
			"external_ref", input.ExternalRef,
			"balance", res.Balance)
		if s.notifier != nil {
			_ = s.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindDepositCompleted,
				Destination: res.Transaction.UserID,
				Body:        fmt.Sprintf("Your deposit of %d %s is confirmed", res.Transaction.Amount, res.Transaction.Currency),
			})
		}
	case ledger.CodeFailed:
		s.logger.Info("deposit failed", "transaction_id", res.Transaction.ID, "user_id", res.Transaction.UserID)
	case ledger.CodeAlreadyFinalized:
		s.logger.Info("completion replayed", "transaction_id", res.Transaction.ID, "status", res.Transaction.Status)
	}

	return res, nil
}

// Get returns a tracked transaction.
func (s *Service) Get(ctx context.Context, id string) (ledger.Transaction, error) {
	return s.ledger.GetTransaction(ctx, id)
}
