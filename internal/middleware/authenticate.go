package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
	"github.com/ronalsilva/waller-microservice/internal/auth"
	"github.com/ronalsilva/waller-microservice/internal/resolver"
	"github.com/ronalsilva/waller-microservice/internal/users"
)

const (
	IdentityKey = "identity"
	UserIDKey   = "user_id"

	CodeAuthTimeout     = "AUTH_TIMEOUT"
	CodeAuthRemoteError = "AUTH_REMOTE_ERROR"
)

// TokenVerifier verifies tokens issued by this service.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// UserLookup returns local accounts by id.
type UserLookup interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// RemoteResolver resolves bearer tokens through the identity service.
type RemoteResolver interface {
	ValidateToken(ctx context.Context, token string) (resolver.Identity, error)
}

// Authenticate resolves the bearer token into an identity. Tokens signed by
// this service are checked locally, including the per-user salt; any other
// token goes to remote, which may be nil when remote resolution is disabled.
// The identity is stored under IdentityKey and its id under UserIDKey.
func Authenticate(tokens TokenVerifier, accounts UserLookup, remote RemoteResolver, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return unauthorized("missing or invalid authorization header")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		if token == "" {
			return unauthorized("missing or invalid authorization header")
		}

		identity, err := resolveLocal(c.UserContext(), tokens, accounts, token)
		if errors.Is(err, auth.ErrForeignToken) && remote != nil {
			identity, err = remote.ValidateToken(c.UserContext(), token)
		}
		if err != nil {
			return rejectIdentity(err, logger)
		}

		c.Locals(IdentityKey, identity)
		c.Locals(UserIDKey, identity.ID)
		return c.Next()
	}
}

func resolveLocal(ctx context.Context, tokens TokenVerifier, accounts UserLookup, token string) (resolver.Identity, error) {
	claims, err := tokens.Verify(token)
	if err != nil {
		return resolver.Identity{}, err
	}
	user, err := accounts.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return resolver.Identity{}, resolver.ErrNoIdentity
		}
		return resolver.Identity{}, err
	}
	if user.Salt != claims.Salt {
		return resolver.Identity{}, auth.ErrTokenExpired
	}
	return resolver.Identity{ID: user.ID, Email: user.Email, Name: strings.TrimSpace(user.FirstName + " " + user.LastName)}, nil
}

func rejectIdentity(err error, logger *slog.Logger) error {
	switch {
	case errors.Is(err, resolver.ErrTimeout):
		logger.Warn("identity resolution timed out")
		return apierror.Wrap(err, http.StatusUnauthorized, CodeAuthTimeout, "identity resolution timed out")
	case errors.Is(err, resolver.ErrRemote):
		return apierror.Wrap(err, http.StatusUnauthorized, CodeAuthRemoteError, "invalid token")
	case errors.Is(err, auth.ErrTokenExpired):
		return apierror.Wrap(err, http.StatusUnauthorized, apierror.CodeUnauthorized, "token expired")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// caller went away; the publish path wraps this as ErrPublish too
	case errors.Is(err, resolver.ErrPublish):
		logger.Error("identity request could not be published", slog.Any("error", err))
	case errors.Is(err, resolver.ErrNoIdentity), errors.Is(err, auth.ErrForeignToken):
	default:
		logger.Error("token verification failed", slog.Any("error", err))
	}
	return apierror.Wrap(err, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid token")
}

func unauthorized(message string) error {
	return apierror.New(http.StatusUnauthorized, apierror.CodeUnauthorized, message)
}
