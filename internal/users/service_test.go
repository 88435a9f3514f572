package users

import (
	"context"
	"errors"
	"testing"
)

func register(t *testing.T, svc *Service, email string) User {
	t.Helper()
	user, err := svc.Register(context.Background(), CreateInput{
		FirstName: "Ana",
		LastName:  "Souza",
		Email:     email,
		Password:  "s3cret!",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user := register(t, svc, " Ana@Example.com ")
	if user.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Salt == "" || string(user.PasswordHash) == "s3cret!" {
		t.Fatalf("expected hashed password and salt")
	}

	authed, err := svc.Authenticate(ctx, "ana@example.com", "s3cret!")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, authed.ID)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	register(t, svc, "ana@example.com")

	if _, err := svc.Authenticate(ctx, "ana@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "s3cret!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	register(t, svc, "ana@example.com")

	if _, err := svc.Register(ctx, CreateInput{FirstName: "B", Email: "ana@example.com", Password: "s3cret!"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Register(ctx, CreateInput{FirstName: "B", Email: "not-an-email", Password: "s3cret!"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for email, got %v", err)
	}
	if _, err := svc.Register(ctx, CreateInput{FirstName: "B", Email: "b@example.com", Password: "123"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for password, got %v", err)
	}
}

func TestUpdatePasswordRotatesSalt(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	user := register(t, svc, "ana@example.com")

	name := "Ana Maria"
	password := "n3w-password"
	updated, err := svc.Update(ctx, user.ID, UpdateInput{FirstName: &name, Password: &password})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FirstName != name {
		t.Fatalf("expected first name %q, got %q", name, updated.FirstName)
	}
	if updated.Salt == user.Salt {
		t.Fatalf("expected salt rotation on password change")
	}
	if _, err := svc.Authenticate(ctx, "ana@example.com", password); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	user := register(t, svc, "ana@example.com")

	if err := svc.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}
