// Package auth verifies the bearer access tokens that identify the owner of a request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("access token secret is not configured")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// Claims carries the owner id under "id", as issued by the auth service
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"id"`
}

// GenerateAccessToken signs an HS256 access token for ownerID
func GenerateAccessToken(secret, ownerID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OwnerID: ownerID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAccessToken validates the token and returns the owner id it carries
func ParseAccessToken(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	ownerID := claims.OwnerID
	if ownerID == "" {
		ownerID = claims.Subject
	}
	if ownerID == "" {
		return "", fmt.Errorf("%w: token carries no owner id", ErrInvalidToken)
	}
	return ownerID, nil
}
