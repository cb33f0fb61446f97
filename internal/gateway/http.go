package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPGateway talks to the processor's charge API over HTTPS.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway builds a gateway client with a hard request timeout.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type chargeRequestBody struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	UserID      string `json:"user_id"`
	Description string `json:"description"`
}

type chargeResponseBody struct {
	ChargeID  string            `json:"chargeId"`
	HostedURL string            `json:"hostedUrl"`
	Addresses map[string]string `json:"addresses"`
	Pricing   map[string]struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"pricing"`
}

type gatewayErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCharge posts a charge request and maps the response onto a descriptor.
// 5xx and transport failures surface as ErrGatewayUnavailable, everything else
// non-2xx as ErrGatewayRejected with the processor's message attached.
func (g *HTTPGateway) CreateCharge(ctx context.Context, req ChargeRequest) (ChargeDescriptor, error) {
	payload, err := json.Marshal(chargeRequestBody{
		Amount:      req.Amount,
		Currency:    req.Currency,
		UserID:      req.UserID,
		Description: req.Description,
	})
	if err != nil {
		return ChargeDescriptor{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(payload))
	if err != nil {
		return ChargeDescriptor{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return ChargeDescriptor{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ChargeDescriptor{}, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return ChargeDescriptor{}, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var gwErr gatewayErrorBody
		if err := json.Unmarshal(body, &gwErr); err == nil && gwErr.Error.Message != "" {
			return ChargeDescriptor{}, fmt.Errorf("%w: %s", ErrGatewayRejected, gwErr.Error.Message)
		}
		return ChargeDescriptor{}, fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}

	var decoded chargeResponseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ChargeDescriptor{}, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	if decoded.ChargeID == "" {
		return ChargeDescriptor{}, fmt.Errorf("%w: response missing charge id", ErrGatewayRejected)
	}

	descriptor := ChargeDescriptor{
		ChargeID:  decoded.ChargeID,
		HostedURL: decoded.HostedURL,
		Addresses: decoded.Addresses,
		Pricing:   make(map[string]decimal.Decimal, len(decoded.Pricing)),
	}
	for code, price := range decoded.Pricing {
		descriptor.Pricing[code] = price.Amount
	}
	return descriptor, nil
}
