// Package auth encodes session tokens and hashes passwords.
//
// A session token is an HS256 JWT carrying only the session id (jti), the
// principal kind (aud), the issue time and an optional expiry. The token is
// meaningless without the server-side session row it names.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// GenerateToken signs a token for sessionID. A ttl of zero issues a token
// without expiry.
func GenerateToken(sessionID string, kind models.PrincipalKind, secretKey []byte, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       sessionID,
		Audience: jwt.ClaimStrings{string(kind)},
		IssuedAt: jwt.NewNumericDate(issuedAt),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString for the given principal kind as of now and
// returns the session id. Expired tokens yield common.ErrTokenExpired;
// anything else that fails verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, kind models.PrincipalKind, secretKey []byte, now time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithAudience(string(kind)),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.ID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.ID, nil
}
