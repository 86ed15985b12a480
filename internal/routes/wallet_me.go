package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/offline-pay/offline_pay/internal/identity"
	"github.com/offline-pay/offline_pay/internal/middleware"
	"github.com/offline-pay/offline_pay/internal/wallet"
)

// RegisterWalletMeRoute exposes GET /me with the caller's profile and wallet.
func RegisterWalletMeRoute(r fiber.Router, auth fiber.Handler, wallets *wallet.Service, ids *identity.Service) {
	r.Get("/me", auth, func(c *fiber.Ctx) error {
		num, _ := c.Locals(middleware.LocalNum).(string)
		if num == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		acct, err := ids.Lookup(c.UserContext(), num)
		if errors.Is(err, identity.ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		w, err := wallets.GetByOwner(c.UserContext(), num)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		bal, err := wallets.Balance(c.UserContext(), num)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status": "success",
			"user": fiber.Map{
				"name":       acct.Name,
				"num":        acct.Phone,
				"created_at": acct.CreatedAt,
			},
			"wallet": fiber.Map{
				"id":           w.ID,
				"account_code": w.AccountCode,
				"status":       w.Status,
				"created_at":   w.CreatedAt,
				"balance":      bal.Amount,
				"as_of":        bal.AsOf,
			},
		})
	})
}
