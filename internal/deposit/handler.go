package deposit

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/casino-royal/cashier/internal/gateway"
	"github.com/casino-royal/cashier/internal/ledger"
	"github.com/casino-royal/cashier/internal/wallet"
)

// Handler exposes deposit HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a deposit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Open starts a deposit: pending transaction plus hosted charge.
func (h *Handler) Open(c *fiber.Ctx) error {
	var req OpenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Open(c.UserContext(), OpenInput{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ErrUnsupportedCurrency),
			errors.Is(err, wallet.ErrCurrencyMismatch), errors.Is(err, gateway.ErrGatewayRejected):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			return fiber.NewError(http.StatusBadGateway, err.Error())
		case errors.Is(err, ledger.ErrStoreUnavailable):
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(OpenResponse{
		Transaction: toTransactionResponse(result.Transaction),
		Charge:      toChargeResponse(result.Charge),
	})
}

// Get returns a tracked transaction by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	txn, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownTransaction) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(txn))
}

// DevComplete synthesizes a completion event for manual testing. Routed only
// outside production; see routes.
func (h *Handler) DevComplete(c *fiber.Ctx) error {
	var req struct {
		TransactionID string `json:"transactionId"`
		ExternalRef   string `json:"externalRef"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.TransactionID == "" {
		return fiber.NewError(http.StatusBadRequest, "transactionId is required")
	}
	externalRef := req.ExternalRef
	if externalRef == "" {
		externalRef = "dev-" + req.TransactionID
	}

	res, err := h.service.Complete(c.UserContext(), CompleteInput{
		TransactionID: req.TransactionID,
		Outcome:       ledger.OutcomeCompleted,
		ExternalRef:   externalRef,
		ApproverID:    "dev-console",
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnknownTransaction):
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		case errors.Is(err, ledger.ErrStoreUnavailable):
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"result":      string(res.Code),
		"transaction": toTransactionResponse(res.Transaction),
		"balance":     res.Balance,
	})
}
