// Package auth provides stateless session authentication using JWT.
// Tokens carry identity only; scopes are resolved from the store per
// request so scope changes take effect immediately.
package auth

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stencilcms/stencil/ports"
)

type tokenClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService implements ports.TokenAuthority with HMAC-signed JWTs.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a new JWT token service.
// If secret is empty, a random 32-byte secret is generated; sessions
// then do not survive a restart.
func NewTokenService(secret string) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}

	return &TokenService{
		secret: secretBytes,
		issuer: "stencil",
	}
}

// Issue creates a signed token for a user.
func (s *TokenService) Issue(claims ports.Claims, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now().UTC()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(s.secret)
}

// Verify validates a token and returns its claims.
func (s *TokenService) Verify(tokenString string) (ports.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return ports.Claims{}, err
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return ports.Claims{}, errors.New("invalid token")
	}

	return ports.Claims{UserID: claims.UserID, Email: claims.Email}, nil
}

// Ensure interface compliance.
var _ ports.TokenAuthority = (*TokenService)(nil)
