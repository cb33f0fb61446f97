package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable indicates a transport failure or a 5xx from the
	// processor. Safe for the caller to retry with the same transaction id.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected indicates the processor refused the charge request.
	// Not retryable.
	ErrGatewayRejected = errors.New("payment gateway rejected charge")
)

// ChargeRequest carries the data needed to open a hosted charge.
type ChargeRequest struct {
	UserID      string
	Amount      int64
	Currency    string
	Description string
}

// ChargeDescriptor is the processor's handle for a pending charge: the hosted
// payment page the user is sent to, the deposit addresses per settlement
// currency, and the quoted prices.
type ChargeDescriptor struct {
	ChargeID  string
	HostedURL string
	Addresses map[string]string
	Pricing   map[string]decimal.Decimal
}

// Gateway is a connector to the external payment processor. Implementations
// wrap a single remote call and keep no local state; retry policy belongs to
// the caller.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (ChargeDescriptor, error)
}
