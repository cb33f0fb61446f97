package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/casino-royal/cashier/internal/deposit"
	"github.com/casino-royal/cashier/internal/ledger"
)

// SignatureHeader carries the processor's hex HMAC of the request body.
const SignatureHeader = "X-Gateway-Signature"

// payload is the processor's wire shape for payment status notifications.
type payload struct {
	TransactionID string `json:"transactionId"`
	ExternalRef   string `json:"externalRef"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
}

// Handler ingests processor callbacks: receive, verify, normalize, dispatch.
// Redelivered events are forwarded to the completion engine, never rejected
// here; uniqueness is enforced by the store's compare-and-swap.
type Handler struct {
	deposits *deposit.Service
	verifier Verifier
	logger   *slog.Logger
}

// NewHandler constructs a webhook handler.
func NewHandler(deposits *deposit.Service, verifier Verifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{deposits: deposits, verifier: verifier, logger: logger}
}

// PaymentCompleted handles POST /webhook/payment-completed.
func (h *Handler) PaymentCompleted(c *fiber.Ctx) error {
	body := c.Body()

	// Authenticity first: an unverified payload never reaches a lookup.
	if err := h.verifier.Verify(body, c.Get(SignatureHeader)); err != nil {
		h.logger.Warn("webhook rejected: verification failed",
			"remote_ip", c.IP(),
			"request_id", c.Locals("X-Request-ID"))
		return fiber.NewError(http.StatusBadRequest, ErrVerificationFailed.Error())
	}

	var event payload
	if err := json.Unmarshal(body, &event); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed payload")
	}
	if event.TransactionID == "" {
		return fiber.NewError(http.StatusBadRequest, "transactionId is required")
	}

	outcome, err := normalizeStatus(event.Status)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.deposits.Complete(c.UserContext(), deposit.CompleteInput{
		TransactionID: event.TransactionID,
		Outcome:       outcome,
		ExternalRef:   event.ExternalRef,
		RawAmount:     event.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnknownTransaction):
			return fiber.NewError(http.StatusNotFound, "unknown transaction")
		case errors.Is(err, ledger.ErrStoreUnavailable):
			// 500 tells the processor to redeliver; the CAS makes that safe.
			return fiber.NewError(http.StatusInternalServerError, "store unavailable")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	// 200 regardless of whether this delivery won the transition or replayed.
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"received": true,
		"result":   string(res.Code),
	})
}

// normalizeStatus maps the processor status vocabulary onto canonical
// outcomes. Only recognized terminal states pass.
func normalizeStatus(status string) (ledger.Outcome, error) {
	switch status {
	case "completed", "confirmed", "resolved":
		return ledger.OutcomeCompleted, nil
	case "failed", "expired":
		return ledger.OutcomeFailed, nil
	default:
		return "", errors.New("unrecognized status: " + status)
	}
}
