package routes

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/offline-pay/offline_pay/internal/payments"
)

// RegisterPaymentRoutes wires the transfer and refetch endpoints behind the
// given middleware chain.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, chain ...fiber.Handler) {
	r.Post("/transfer", slices.Concat(chain, []fiber.Handler{h.Transfer})...)
	r.Get("/refetch", slices.Concat(chain, []fiber.Handler{h.Refetch})...)
}
