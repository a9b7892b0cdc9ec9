// Package auth issues and verifies the HS256 access tokens the HTTP API
// uses. Every token carries the tenant it was issued for; the API layer
// binds that tenant to the request path.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
)

// Claims extends the registered claims with the account and tenant the
// token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId"`
	TenantID  string `json:"tenantId"`
}

func GenerateToken(accountID, tenantID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		AccountID: accountID,
		TenantID:  tenantID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies a token string and returns its claims. Expired tokens
// map to common.ErrTokenExpired so the API can tell the client to refresh.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
