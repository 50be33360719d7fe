package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller encoded in a token
type Identity struct {
	UserID         int
	Email          string
	Role           string
	OrganizationID *int
}

// Claims represents JWT claims
type Claims struct {
	UserID         int    `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID *int   `json:"organizationId,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller described by the claims
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:         c.UserID,
		Email:          c.Email,
		Role:           c.Role,
		OrganizationID: c.OrganizationID,
	}
}

// GenerateJWT generates a signed token for the identity.
// Tokens are never refreshed or revoked server side; expiry is the only invalidation.
func GenerateJWT(id Identity, secret string, expirationHours int) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:         id.UserID,
		Email:          id.Email,
		Role:           id.Role,
		OrganizationID: id.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour * time.Duration(expirationHours))),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
