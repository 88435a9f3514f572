package users

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid user input")
)

// User is a locally registered account. Salt is rotated whenever the password
// changes; bearer tokens embed it so older tokens stop verifying.
type User struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	ProfilePicture string
	PasswordHash   []byte
	Salt           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput captures the fields accepted on registration.
type CreateInput struct {
	FirstName      string
	LastName       string
	Email          string
	Password       string
	ProfilePicture string
}

// UpdateInput carries optional profile changes. Nil fields are left untouched.
type UpdateInput struct {
	FirstName      *string
	LastName       *string
	Email          *string
	Password       *string
	ProfilePicture *string
}
