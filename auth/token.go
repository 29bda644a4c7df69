package auth

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var _ contract.IAuthenticator = (*TokenVerifier)(nil)

// CustomClaims is what a gateway token carries.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenVerifier issues and checks HS256 tokens bound to one issuer.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenVerifier(secret, issuer string, lifetime time.Duration) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, lifetime: lifetime, now: time.Now}
}

// Issue creates a signed token for userID.
func (v *TokenVerifier) Issue(userID domain.UserID) (string, error) {
	issuedAt := v.now()
	claims := &CustomClaims{
		UserID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(v.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Authenticate returns the identity a valid token was issued for.
func (v *TokenVerifier) Authenticate(_ context.Context, token string) (domain.UserID, error) {
	claims := &CustomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(token *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if !parsed.Valid || !domain.ValidIdentifier(claims.UserID) {
		return "", errors.ErrUnauthenticated
	}
	return domain.UserID(claims.UserID), nil
}
