package deposit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/casino-royal/cashier/internal/gateway"
	"github.com/casino-royal/cashier/internal/ledger"
)

// OpenRequest captures user-provided data to start a deposit.
type OpenRequest struct {
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ChargeResponse mirrors the processor's charge descriptor for the client.
type ChargeResponse struct {
	ChargeID  string                     `json:"charge_id"`
	HostedURL string                     `json:"hosted_url"`
	Addresses map[string]string          `json:"addresses,omitempty"`
	Pricing   map[string]decimal.Decimal `json:"pricing,omitempty"`
}

// TransactionResponse is the API shape of a tracked transaction.
type TransactionResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	ExternalRef string `json:"external_ref,omitempty"`
	ApproverID  string `json:"approver_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// OpenResponse pairs the pending transaction with its charge.
type OpenResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Charge      ChargeResponse      `json:"charge"`
}

func toTransactionResponse(txn ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:          txn.ID,
		UserID:      txn.UserID,
		Kind:        string(txn.Kind),
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		Status:      string(txn.Status),
		ExternalRef: txn.ExternalRef,
		ApproverID:  txn.ApproverID,
		CreatedAt:   txn.CreatedAt.Format(time.RFC3339Nano),
	}
	if txn.CompletedAt != nil {
		resp.CompletedAt = txn.CompletedAt.Format(time.RFC3339Nano)
	}
	return resp
}

func toChargeResponse(charge gateway.ChargeDescriptor) ChargeResponse {
	return ChargeResponse{
		ChargeID:  charge.ChargeID,
		HostedURL: charge.HostedURL,
		Addresses: charge.Addresses,
		Pricing:   charge.Pricing,
	}
}
