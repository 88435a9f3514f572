package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ronalsilva/waller-microservice/internal/config"
	"github.com/ronalsilva/waller-microservice/internal/users"
)

const issuer = "wallet-microservice"

var (
	// ErrTokenExpired indicates a locally issued token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrForeignToken indicates a token this service did not sign.
	ErrForeignToken = errors.New("token not issued by this service")
)

// Claims is the payload of tokens issued by /login.
type Claims struct {
	jwt.RegisteredClaims
	ID    string `json:"id"`
	Email string `json:"email"`
	Salt  string `json:"salt"`
}

// Service issues and verifies HS256 bearer tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(cfg config.Config) *Service {
	return &Service{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.AccessTokenTTL,
		now:    time.Now,
	}
}

// TokenPair is returned by Login. The refresh token is the user's current salt.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Login issues a token pair for an authenticated user.
func (s *Service) Login(user users.User) (TokenPair, error) {
	token, err := s.Issue(user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: token, RefreshToken: user.Salt, ExpiresIn: int64(s.ttl.Seconds())}, nil
}

// Issue signs a token embedding {email, id, salt}.
func (s *Service) Issue(user users.User) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		ID:    user.ID,
		Email: user.Email,
		Salt:  user.Salt,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token. Tokens that fail signature or format checks are
// reported as ErrForeignToken so callers can hand them to another verifier.
func (s *Service) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil && parsed.Valid && claims.ID != "":
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err == nil:
		return Claims{}, ErrForeignToken
	}
	return Claims{}, fmt.Errorf("%w: %w", ErrForeignToken, err)
}
