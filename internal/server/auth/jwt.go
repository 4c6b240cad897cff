// Package auth issues and checks the short-lived assertions handed out after
// a successful two-factor login verification.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "secledger"

// Claims carries the verified username in Subject and marks the token as
// the result of a second-factor check.
type Claims struct {
	jwt.RegisteredClaims
	TwoFactor bool `json:"tfa"`
}

// GenerateAssertion signs an HS256 assertion for username valid for ttl from now.
func GenerateAssertion(username string, secretKey []byte, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TwoFactor: true,
	})

	return token.SignedString(secretKey)
}

// ParseAssertion validates tokenString and returns the username it was
// issued for.
func ParseAssertion(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || !claims.TwoFactor || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
