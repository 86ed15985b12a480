package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/offline-pay/offline_pay/internal/auth"
)

// RegisterAuthRoutes wires the register and login endpoints. Login attempts
// go through rateLimiter when one is given.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	r.Post("/register", h.Register)
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
	} else {
		r.Post("/login", h.Login)
	}
}
