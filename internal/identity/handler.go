package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletgate/internal/api"
)

// Locals populated by the authentication middleware.
const (
	LocalUserID  = "user_id"
	LocalAddress = "address"
	LocalEmail   = "email"
)

// Handler exposes the user endpoints over HTTP.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// User returns the profile of the caller.
func (h *Handler) User(c *fiber.Ctx) error {
	user, err := h.svc.Get(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(user.View())
}

// Terms lists the public terms.
func (h *Handler) Terms(c *fiber.Ctx) error {
	return c.JSON(api.TermsResponse{Terms: h.svc.Terms()})
}

// UserTerms lists the caller's terms.
func (h *Handler) UserTerms(c *fiber.Ctx) error {
	terms, err := h.svc.UserTerms(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(api.TermsResponse{Terms: terms})
}

// AcceptTerms records one acceptance.
func (h *Handler) AcceptTerms(c *fiber.Ctx) error {
	var req api.AcceptTermsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AcceptTerms(c.UserContext(), userID(c), req.Terms, req.Version); err != nil {
		return h.fail(err)
	}
	return c.JSON(api.OKResponse{Success: true})
}

// KycIntegration returns the hosted verification URL.
func (h *Handler) KycIntegration(c *fiber.Ctx) error {
	return c.JSON(api.KycIntegration{URL: h.svc.KycURL()})
}

// SubmitKyc stores the submitted identity.
func (h *Handler) SubmitKyc(c *fiber.Ctx) error {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.svc.SubmitKyc(c.UserContext(), userID(c), req.FirstName, req.LastName)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user.View()})
}

// SourceOfFunds lists the questions.
func (h *Handler) SourceOfFunds(c *fiber.Ctx) error {
	return c.JSON(h.svc.SourceOfFundsQuestions())
}

// SubmitSourceOfFunds stores the answers.
func (h *Handler) SubmitSourceOfFunds(c *fiber.Ctx) error {
	var answers []api.KycQuestion
	if err := c.BodyParser(&answers); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AnswerSourceOfFunds(c.UserContext(), userID(c), answers); err != nil {
		return h.fail(err)
	}
	return c.JSON(api.OKResponse{Success: true})
}

// RequestVerification sends a phone code.
func (h *Handler) RequestVerification(c *fiber.Ctx) error {
	var req api.PhoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	requestID, err := h.svc.RequestPhoneCode(c.UserContext(), userID(c), req.PhoneNumber)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(api.OKResponse{OK: true, RequestID: requestID})
}

// CheckVerification verifies a phone code.
func (h *Handler) CheckVerification(c *fiber.Ctx) error {
	var req api.PhoneCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.VerifyPhoneCode(c.UserContext(), userID(c), req.Code); err != nil {
		return h.fail(err)
	}
	return c.JSON(api.OKResponse{Success: true})
}

// SafeConfig describes the caller's account.
func (h *Handler) SafeConfig(c *fiber.Ctx) error {
	cfg, err := h.svc.SafeConfig(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(cfg)
}

// Balances returns the caller's balances.
func (h *Handler) Balances(c *fiber.Ctx) error {
	b, err := h.svc.Balances(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(b)
}

// DeployStatus reports the deployment.
func (h *Handler) DeployStatus(c *fiber.Ctx) error {
	status, err := h.svc.DeployStatus(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(api.DeployResponse{Status: status})
}

// Deploy requests the deployment.
func (h *Handler) Deploy(c *fiber.Ctx) error {
	status, err := h.svc.RequestDeploy(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(err)
	}
	h.logger.Info("safe deployment requested", slog.String("user_id", userID(c)), slog.String("status", string(status)))
	return c.JSON(api.DeployResponse{Status: status})
}

// DevKycApprove approves the KYC of the user in the body.
func (h *Handler) DevKycApprove(c *fiber.Ctx) error {
	return h.dev(c, func(req api.DevUserRequest) (User, error) {
		return h.svc.SetKycStatus(c.UserContext(), req.UserID, api.KycApproved)
	})
}

// DevSetKycStatus forces the KYC status of the user in the body.
func (h *Handler) DevSetKycStatus(c *fiber.Ctx) error {
	return h.dev(c, func(req api.DevUserRequest) (User, error) {
		return h.svc.SetKycStatus(c.UserContext(), req.UserID, req.Status)
	})
}

// DevSourceOfFundsApprove marks the questions answered.
func (h *Handler) DevSourceOfFundsApprove(c *fiber.Ctx) error {
	return h.dev(c, func(req api.DevUserRequest) (User, error) {
		if err := h.svc.ApproveSourceOfFunds(c.UserContext(), req.UserID); err != nil {
			return User{}, err
		}
		return h.svc.Get(c.UserContext(), req.UserID)
	})
}

// DevPhoneVerifyApprove marks the phone validated.
func (h *Handler) DevPhoneVerifyApprove(c *fiber.Ctx) error {
	return h.dev(c, func(req api.DevUserRequest) (User, error) {
		if err := h.svc.ApprovePhone(c.UserContext(), req.UserID); err != nil {
			return User{}, err
		}
		return h.svc.Get(c.UserContext(), req.UserID)
	})
}

// DevSafeDeployApprove deploys the account at once.
func (h *Handler) DevSafeDeployApprove(c *fiber.Ctx) error {
	return h.dev(c, func(req api.DevUserRequest) (User, error) {
		return h.svc.ApproveSafeDeploy(c.UserContext(), req.UserID)
	})
}

// DevResetUser clears the onboarding state.
func (h *Handler) DevResetUser(c *fiber.Ctx) error {
	return h.dev(c, func(req api.DevUserRequest) (User, error) {
		return h.svc.Reset(c.UserContext(), req.UserID)
	})
}

func (h *Handler) dev(c *fiber.Ctx, apply func(api.DevUserRequest) (User, error)) error {
	var req api.DevUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return fiber.NewError(http.StatusBadRequest, "userId is required")
	}
	user, err := apply(req)
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return h.fail(err)
	}
	h.logger.Info("dev helper applied", slog.String("path", c.Path()), slog.String("user_id", req.UserID))
	return c.JSON(fiber.Map{"success": true, "user": user.View()})
}

// fail maps service errors onto HTTP errors.
func (h *Handler) fail(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		// The token is valid but its user is gone; make the client sign in again.
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, ErrKycNotApproved):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrAddressTaken):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrAddressRequired), errors.Is(err, ErrInvalidKycStatus),
		errors.Is(err, ErrUnknownTerms), errors.Is(err, ErrStaleTerms), errors.Is(err, ErrIncompleteAnswers),
		errors.Is(err, ErrPhoneRequired), errors.Is(err, ErrInvalidCode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	h.logger.Error("identity request failed", slog.Any("error", err))
	return fiber.NewError(http.StatusInternalServerError, "internal error")
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
