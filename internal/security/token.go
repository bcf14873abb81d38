package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for expired, malformed, or forged tokens
	ErrInvalidToken = errors.New("invalid token")
)

// OperatorClaims are the JWT claims carried by an operator bearer token
type OperatorClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueOperatorToken signs a bearer token for an authenticated operator
func IssueOperatorToken(secret string, operatorID int64, email string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   fmt.Sprintf("%d", operatorID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseOperatorToken validates a bearer token and returns its claims
func ParseOperatorToken(secret, tokenString string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
