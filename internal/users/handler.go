package users

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
)

// Handler exposes user profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a user HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	ProfilePicture string `json:"profile_picture"`
}

type updateRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	ProfilePicture *string `json:"profile_picture"`
}

type userResponse struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	ProfilePicture *string   `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

// Create registers a user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.service.Register(c.UserContext(), CreateInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Password:       req.Password,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(user))
}

// Get returns the authenticated user's profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	user, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

// Update changes the authenticated user's profile.
func (h *Handler) Update(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.service.Update(c.UserContext(), uid, UpdateInput(req))
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

// Delete removes the authenticated user.
func (h *Handler) Delete(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.service.Delete(c.UserContext(), uid); err != nil {
		return toAPIError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func toAPIError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return apierror.Wrap(err, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	case errors.Is(err, ErrEmailTaken):
		return apierror.Wrap(err, http.StatusConflict, "EMAIL_TAKEN", "email already registered")
	case errors.Is(err, ErrInvalidInput):
		return apierror.Wrap(err, http.StatusBadRequest, apierror.CodeBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return apierror.Wrap(err, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid email or password")
	}
	return apierror.From(err)
}

func toResponse(u User) userResponse {
	var picture *string
	if u.ProfilePicture != "" {
		p := u.ProfilePicture
		picture = &p
	}
	return userResponse{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		ProfilePicture: picture,
		CreatedAt:      u.CreatedAt,
	}
}
