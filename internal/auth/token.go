// Package auth issues and verifies signed bearer tokens. Tokens are HS256
// JWTs carrying the account id and role; anything unsigned or signed with
// another method is rejected.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/errors"
)

const minSecretLength = 32

// DefaultTTL is the token lifetime used when the config does not set one.
const DefaultTTL = 24 * time.Hour

// Claims is the token payload.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies tokens with a shared HMAC secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenManager builds a manager. The secret must be at least 32 bytes.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(strings.TrimSpace(secret)) < minSecretLength {
		return nil, errors.Validation("token secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, issuer: "mealbridge"}, nil
}

// Issue creates a signed token for the account.
func (m *TokenManager) Issue(usr user.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: usr.ID,
		Email:  usr.Email,
		Role:   string(usr.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Internal("sign token", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, errors.InvalidToken(nil)
	}
	return claims, nil
}
