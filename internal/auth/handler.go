package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
	"github.com/ronalsilva/waller-microservice/internal/users"
)

// Accounts is the subset of the user service needed for login.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (users.User, error)
	RotateSalt(ctx context.Context, id string) error
}

// Handler exposes login and logout endpoints.
type Handler struct {
	accounts Accounts
	svc      *Service
}

func NewHandler(accounts Accounts, svc *Service) *Handler {
	return &Handler{accounts: accounts, svc: svc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User string `json:"user"`
	TokenPair
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			return apierror.New(http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid email or password")
		}
		return apierror.From(err)
	}
	pair, err := h.svc.Login(user)
	if err != nil {
		return apierror.From(err)
	}
	return c.Status(http.StatusOK).JSON(loginResponse{User: user.Email, TokenPair: pair})
}

// Logout rotates the caller's salt so previously issued tokens stop verifying.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.accounts.RotateSalt(c.UserContext(), uid); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return apierror.New(http.StatusUnauthorized, apierror.CodeUnauthorized, "token does not belong to a local user")
		}
		return apierror.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
