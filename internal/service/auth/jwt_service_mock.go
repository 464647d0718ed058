package auth

import "context"

// MockJWTService is a configurable JWTService for tests in other packages.
type MockJWTService struct {
	// ValidateTokenFn overrides ValidateToken when set.
	ValidateTokenFn func(ctx context.Context, tokenString string) (*Claims, error)

	// Claims and Err are returned when ValidateTokenFn is nil.
	Claims *Claims
	Err    error
}

// Ensure MockJWTService implements JWTService interface
var _ JWTService = (*MockJWTService)(nil)

// ValidateToken implements JWTService.ValidateToken
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Claims, nil
}
