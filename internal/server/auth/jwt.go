// Package auth parses access tokens issued by the external credential
// collaborator. The core never mints end-user credentials itself; the
// generator below exists for tests and local tooling.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openheritage/memoryvault/internal/common"
)

// Claims carries the registered claims plus the subject's identifier and
// verification trust level.
type Claims struct {
	jwt.RegisteredClaims
	UserID            string `json:"uid"`
	VerificationLevel int    `json:"vlevel"`
}

// GenerateToken signs a token for userID with the given verification level.
func GenerateToken(userID string, verificationLevel int, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID:            userID,
		VerificationLevel: verificationLevel,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
