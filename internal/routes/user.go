package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletgate/internal/identity"
	"github.com/congo-pay/walletgate/internal/middleware"
)

// RegisterUserRoutes wires the onboarding endpoints of a signed-up user.
func RegisterUserRoutes(r fiber.Router, h *identity.Handler, jwtmw fiber.Handler) {
	// Public
	r.Get("/terms", h.Terms)
	r.Get("/kyc/integration", h.KycIntegration)
	r.Get("/source-of-funds", h.SourceOfFunds)

	protected := r.Group("", jwtmw, middleware.RequireUser())
	protected.Get("/user", h.User)
	protected.Get("/user/terms", h.UserTerms)
	protected.Post("/user/terms", h.AcceptTerms)
	protected.Post("/kyc/submit", h.SubmitKyc)
	protected.Post("/source-of-funds", h.SubmitSourceOfFunds)
	protected.Post("/verification", h.RequestVerification)
	protected.Post("/verification/check", h.CheckVerification)
	protected.Get("/safe-config", h.SafeConfig)
	protected.Get("/account/balances", h.Balances)
	protected.Get("/safe/deploy", h.DeployStatus)
	protected.Post("/safe/deploy", h.Deploy)
}

// RegisterDevRoutes wires the development helpers. They trust the userId in
// the body and must never be mounted outside development.
func RegisterDevRoutes(app *fiber.App, h *identity.Handler) {
	dev := app.Group("/dev")
	dev.Post("/kyc-approve", h.DevKycApprove)
	dev.Post("/source-of-funds-approve", h.DevSourceOfFundsApprove)
	dev.Post("/phone-verify-approve", h.DevPhoneVerifyApprove)
	dev.Post("/safe-deploy-approve", h.DevSafeDeployApprove)
	dev.Post("/set-kyc-status", h.DevSetKycStatus)
	dev.Post("/reset-user", h.DevResetUser)
}
