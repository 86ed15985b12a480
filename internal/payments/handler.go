package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/offline-pay/offline_pay/internal/ledger"
	"github.com/offline-pay/offline_pay/internal/validation"
	"github.com/offline-pay/offline_pay/internal/wallet"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	From   string `json:"num_from"`
	To     string `json:"num_to"`
	Amount int64  `json:"amount"`
}

// Transfer settles a number-to-number transfer for the signed in user.
// The Idempotency-Key header, when present, doubles as the client
// transaction id so replays never post twice.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(validation.Transfer{To: req.To, Amount: req.Amount}); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	num, _ := c.Locals("num").(string)

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		From:           req.From,
		To:             req.To,
		Amount:         req.Amount,
		ClientTxID:     c.Get("Idempotency-Key"),
		RequestorPhone: num,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusUnprocessableEntity, "insufficient funds")
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrNotOwner):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrSelfTransfer):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrRecipientNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, wallet.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "sender has no wallet")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":         "success",
		"transaction_id": res.TransactionID,
		"balance":        res.FromBalance,
		"duplicate":      res.Duplicate,
		"completed_at":   res.CompletedAt,
	})
}

// Refetch returns the signed in user's balance and log.
func (h *Handler) Refetch(c *fiber.Ctx) error {
	num, _ := c.Locals("num").(string)
	if num == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	st, err := h.service.Statement(c.UserContext(), num)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"logs":    st.Logs,
		"balance": st.Balance,
	})
}
