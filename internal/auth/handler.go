package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletgate/internal/api"
	"github.com/congo-pay/walletgate/internal/identity"
)

// Handler exposes the nonce, challenge and signup endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Nonce answers with a bare JSON string.
func (h *Handler) Nonce(c *fiber.Ctx) error {
	nonce, err := h.svc.Nonce(c.UserContext())
	if err != nil {
		h.logger.Error("issue nonce", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "nonce store failure")
	}
	return c.JSON(nonce)
}

// Challenge exchanges a signed sign-in message for a token.
func (h *Handler) Challenge(c *fiber.Ctx) error {
	var req api.ChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, err := h.svc.Challenge(c.UserContext(), req.Message, req.Signature)
	switch {
	case err == nil:
		return c.JSON(api.TokenResponse{Token: token})
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrInvalidMessage):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidNonce), errors.Is(err, ErrMessageExpired):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	h.logger.Error("challenge failed", slog.Any("error", err))
	return fiber.NewError(http.StatusInternalServerError, "challenge failure")
}

// Signup registers the bearer's wallet.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req api.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	address, _ := c.Locals(identity.LocalAddress).(string)
	token, err := h.svc.Signup(c.UserContext(), Identity{Address: address}, req.AuthEmail, req.PartnerID)
	switch {
	case err == nil:
		return c.JSON(api.TokenResponse{Token: token})
	case errors.Is(err, identity.ErrEmailRequired), errors.Is(err, identity.ErrAddressRequired):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrEmailTaken), errors.Is(err, identity.ErrAddressTaken):
		return fiber.NewError(http.StatusConflict, err.Error())
	}
	h.logger.Error("signup failed", slog.Any("error", err))
	return fiber.NewError(http.StatusInternalServerError, "signup failure")
}
