package apierror

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/ledger"
)

const (
	CodeInternal           = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeStorageUnavailable = "SERVICE_UNAVAILABLE"
	CodeStorageTimeout     = "GATEWAY_TIMEOUT"
)

// Error is an error with a stable client-facing code and HTTP status.
type Error struct {
	Status  int
	Code    string
	Message string
	cause   error
}

// New builds an Error without an underlying cause.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap builds an Error that keeps err in the chain.
func Wrap(err error, status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// From converts err into an Error. Storage failures map onto their status
// codes; anything unrecognised becomes a generic 500 so internal detail does
// not leak to clients.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return Wrap(err, fiberErr.Code, codeForStatus(fiberErr.Code), fiberErr.Message)
	}

	switch {
	case errors.Is(err, ledger.ErrNoWallet):
		return Wrap(err, http.StatusNotFound, CodeNotFound, "wallet not found")
	case errors.Is(err, ledger.ErrWalletExists):
		return Wrap(err, http.StatusConflict, CodeConflict, "wallet already exists")
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return Wrap(err, http.StatusServiceUnavailable, CodeStorageUnavailable, "database unavailable, try again later")
	case errors.Is(err, ledger.ErrStorageTimeout):
		return Wrap(err, http.StatusGatewayTimeout, CodeStorageTimeout, "database operation timed out")
	case errors.Is(err, ledger.ErrStorageConstraint):
		return Wrap(err, http.StatusConflict, CodeConflict, "request conflicts with existing data")
	}
	return Wrap(err, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// Handler renders errors as {"error": code, "message": msg}. It is installed as
// the Fiber ErrorHandler.
func Handler(c *fiber.Ctx, err error) error {
	apiErr := From(err)
	return c.Status(apiErr.Status).JSON(fiber.Map{
		"error":   apiErr.Code,
		"message": apiErr.Message,
	})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeStorageUnavailable
	case http.StatusGatewayTimeout:
		return CodeStorageTimeout
	}
	if status >= 500 {
		return CodeInternal
	}
	return http.StatusText(status)
}
