package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/offline-pay/offline_pay/internal/identity"
	"github.com/offline-pay/offline_pay/internal/validation"
	"github.com/offline-pay/offline_pay/internal/wallet"
)

// Handler exposes the register and login endpoints.
type Handler struct {
	ids     *identity.Service
	issuer  *Issuer
	wallets *wallet.Service
}

func NewHandler(ids *identity.Service, issuer *Issuer, wallets *wallet.Service) *Handler {
	return &Handler{ids: ids, issuer: issuer, wallets: wallets}
}

type registerRequest struct {
	Name string `json:"name"`
	Num  string `json:"num"`
	Pass string `json:"pass"`
}

type loginRequest struct {
	Num  string `json:"num"`
	Pass string `json:"pass"`
}

type tokenResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
}

// Register creates an account with its wallet and returns a token.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(validation.Registration{Name: req.Name, Num: req.Num, Pass: req.Pass}); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acct, err := h.ids.Register(c.UserContext(), identity.Credentials{Name: req.Name, Phone: req.Num, Pass: req.Pass})
	if err != nil {
		if errors.Is(err, identity.ErrAccountExists) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.wallets.Open(c.UserContext(), acct.Phone); err != nil && !errors.Is(err, wallet.ErrWalletExists) {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return h.respond(c, acct)
}

// Login validates credentials and returns a token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(validation.Login{Num: req.Num, Pass: req.Pass}); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acct, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Phone: req.Num, Pass: req.Pass})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return h.respond(c, acct)
}

func (h *Handler) respond(c *fiber.Ctx, acct identity.Account) error {
	token, err := h.issuer.Issue(acct)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(tokenResponse{Status: "success", Token: token})
}
