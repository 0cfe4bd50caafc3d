package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lohithgsk/medledger/pkg/types"
)

// PrincipalClaims are the JWT claims carried by ledger access tokens. The
// subject is the principal identity every core operation attributes to.
type PrincipalClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidator validates and mints HMAC-signed bearer tokens
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
	ttl       time.Duration
}

// NewTokenValidator creates a token validator with the shared signing key
func NewTokenValidator(secret string, ttl time.Duration) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    "medledger-api",
		ttl:       ttl,
	}
}

// Validate parses a bearer token and returns the principal it identifies
func (tv *TokenValidator) Validate(tokenString string) (types.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PrincipalClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*PrincipalClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return "", fmt.Errorf("token expired")
	}

	return types.Principal(claims.Subject), nil
}

// Issue mints a signed token for a principal
func (tv *TokenValidator) Issue(principal types.Principal, role string) (string, error) {
	now := time.Now()
	claims := &PrincipalClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tv.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Subject:   string(principal),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tv.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
