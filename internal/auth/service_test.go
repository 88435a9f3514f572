package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ronalsilva/waller-microservice/internal/config"
	"github.com/ronalsilva/waller-microservice/internal/users"
)

func newTestService(secret string) *Service {
	return NewService(config.Config{JWTSecret: secret, AccessTokenTTL: time.Hour})
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService("secret")
	user := users.User{ID: "user-1", Email: "ana@example.com", Salt: "salt-1"}

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.RefreshToken != user.Salt {
		t.Fatalf("expected refresh token to carry the salt")
	}

	claims, err := svc.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ID != user.ID || claims.Email != user.Email || claims.Salt != user.Salt {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyExpired(t *testing.T) {
	svc := newTestService("secret")
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.Issue(users.User{ID: "u", Email: "a@b.c", Salt: "s"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = time.Now

	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyForeignTokens(t *testing.T) {
	svc := newTestService("secret")
	other := newTestService("another-secret")
	foreign, err := other.Issue(users.User{ID: "u"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	noIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for name, token := range map[string]string{
		"other secret": foreign,
		"garbage":      "not-a-jwt",
		"no issuer":    noIssuer,
	} {
		if _, err := svc.Verify(token); !errors.Is(err, ErrForeignToken) {
			t.Fatalf("%s: expected ErrForeignToken, got %v", name, err)
		}
	}
}
