// Package auth verifies the bearer tokens protecting the pipeline API.
// Token issuance is owned by the identity provider; this service only
// validates signatures and extracts claims.
package auth

import (
	"context"
	"time"
)

// JWTService defines operations for verifying JWT authentication tokens.
type JWTService interface {
	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims if the token is valid, or an error if validation
	// fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified claims of an accepted token.
type Claims struct {
	// Subject identifies the operator the token was issued for.
	Subject string `json:"sub,omitempty"`

	// Standard registered JWT claims
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
