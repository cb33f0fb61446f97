package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StaticGateway simulates a successful processor integration for local
// development and tests.
type StaticGateway struct{}

// CreateCharge synthesizes a charge descriptor with a fixed crypto quote.
func (StaticGateway) CreateCharge(_ context.Context, req ChargeRequest) (ChargeDescriptor, error) {
	if req.Amount <= 0 {
		return ChargeDescriptor{}, fmt.Errorf("%w: amount must be positive", ErrGatewayRejected)
	}
	chargeID := uuid.NewString()
	// One BTC quote at a synthetic rate, enough for checkout flows in dev.
	quote := decimal.NewFromInt(req.Amount).Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(60_000))
	return ChargeDescriptor{
		ChargeID:  chargeID,
		HostedURL: "https://checkout.example.com/pay/" + chargeID,
		Addresses: map[string]string{"BTC": "bc1q" + chargeID[:8]},
		Pricing:   map[string]decimal.Decimal{"BTC": quote},
	}, nil
}
