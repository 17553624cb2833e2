package oserver

import (
	"context"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// MockValidator provides customizable hooks for testing the endpoints. Unset
// checks succeed; unset lookups find nothing.
type MockValidator struct {
	ValidateClientFunc            func(ctx context.Context, clientID string) (bool, error)
	ValidateScopesFunc            func(ctx context.Context, clientID string, scopes scope.Scope) (bool, error)
	DefaultScopesFunc             func(ctx context.Context, clientID string) (scope.Scope, error)
	ValidateRedirectURIFunc       func(ctx context.Context, clientID, redirectURI string) (bool, error)
	DefaultRedirectURIFunc        func(ctx context.Context, clientID string) (string, error)
	SaveAuthorizationGrantFunc    func(ctx context.Context, req *AuthorizationRequest, grant Grant) error
	SaveImplicitGrantFunc         func(ctx context.Context, req *AuthorizationRequest, grant Grant) error
	AuthenticateClientFunc        func(ctx context.Context, clientID, clientSecret string) (bool, error)
	ValidateAuthorizationCodeFunc func(ctx context.Context, clientID, code, redirectURI string) (*CodeGrant, error)
	ValidateRefreshTokenFunc      func(ctx context.Context, clientID, refreshToken string) (*AccessGrant, error)
	ValidateUserFunc              func(ctx context.Context, clientID, username, password string) (bool, error)
	SaveBearerTokenFunc           func(ctx context.Context, token *BearerToken) error
	ValidateBearerTokenFunc       func(ctx context.Context, token string) (*AccessGrant, error)
	RevokeTokenFunc               func(ctx context.Context, clientID, token, tokenTypeHint string) error
}

// Ensure MockValidator implements every callback
var (
	_ Validator             = (*MockValidator)(nil)
	_ RefreshTokenValidator = (*MockValidator)(nil)
	_ PasswordValidator     = (*MockValidator)(nil)
)

func (m *MockValidator) ValidateClient(ctx context.Context, clientID string) (bool, error) {
	if m.ValidateClientFunc != nil {
		return m.ValidateClientFunc(ctx, clientID)
	}
	return true, nil
}

func (m *MockValidator) ValidateScopes(ctx context.Context, clientID string, scopes scope.Scope) (bool, error) {
	if m.ValidateScopesFunc != nil {
		return m.ValidateScopesFunc(ctx, clientID, scopes)
	}
	return true, nil
}

// DefaultScopes calls DefaultScopesFunc if set, otherwise returns nil, nil
func (m *MockValidator) DefaultScopes(ctx context.Context, clientID string) (scope.Scope, error) {
	if m.DefaultScopesFunc != nil {
		return m.DefaultScopesFunc(ctx, clientID)
	}
	return nil, nil
}

func (m *MockValidator) ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) (bool, error) {
	if m.ValidateRedirectURIFunc != nil {
		return m.ValidateRedirectURIFunc(ctx, clientID, redirectURI)
	}
	return true, nil
}

// DefaultRedirectURI calls DefaultRedirectURIFunc if set, otherwise returns "", nil
func (m *MockValidator) DefaultRedirectURI(ctx context.Context, clientID string) (string, error) {
	if m.DefaultRedirectURIFunc != nil {
		return m.DefaultRedirectURIFunc(ctx, clientID)
	}
	return "", nil
}

func (m *MockValidator) SaveAuthorizationGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	if m.SaveAuthorizationGrantFunc != nil {
		return m.SaveAuthorizationGrantFunc(ctx, req, grant)
	}
	return nil
}

func (m *MockValidator) SaveImplicitGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	if m.SaveImplicitGrantFunc != nil {
		return m.SaveImplicitGrantFunc(ctx, req, grant)
	}
	return nil
}

func (m *MockValidator) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (bool, error) {
	if m.AuthenticateClientFunc != nil {
		return m.AuthenticateClientFunc(ctx, clientID, clientSecret)
	}
	return true, nil
}

// ValidateAuthorizationCode calls ValidateAuthorizationCodeFunc if set, otherwise returns nil, nil
func (m *MockValidator) ValidateAuthorizationCode(ctx context.Context, clientID, code, redirectURI string) (*CodeGrant, error) {
	if m.ValidateAuthorizationCodeFunc != nil {
		return m.ValidateAuthorizationCodeFunc(ctx, clientID, code, redirectURI)
	}
	return nil, nil
}

func (m *MockValidator) ValidateRefreshToken(ctx context.Context, clientID, refreshToken string) (*AccessGrant, error) {
	if m.ValidateRefreshTokenFunc != nil {
		return m.ValidateRefreshTokenFunc(ctx, clientID, refreshToken)
	}
	return nil, nil
}

func (m *MockValidator) ValidateUser(ctx context.Context, clientID, username, password string) (bool, error) {
	if m.ValidateUserFunc != nil {
		return m.ValidateUserFunc(ctx, clientID, username, password)
	}
	return true, nil
}

func (m *MockValidator) SaveBearerToken(ctx context.Context, token *BearerToken) error {
	if m.SaveBearerTokenFunc != nil {
		return m.SaveBearerTokenFunc(ctx, token)
	}
	return nil
}

func (m *MockValidator) ValidateBearerToken(ctx context.Context, token string) (*AccessGrant, error) {
	if m.ValidateBearerTokenFunc != nil {
		return m.ValidateBearerTokenFunc(ctx, token)
	}
	return nil, nil
}

func (m *MockValidator) RevokeToken(ctx context.Context, clientID, token, tokenTypeHint string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, clientID, token, tokenTypeHint)
	}
	return nil
}
