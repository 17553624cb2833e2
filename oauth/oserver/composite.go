package oserver

import (
	"context"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// CompositeValidator routes each callback to the implementation that owns
// it, e.g. clients in Mongo, codes in Redis and scopes from RBAC. Clients,
// Scopes, Redirects, Grants, Authenticator, Tokens and Bearer are required.
// Codes, Refresh, Users and Revoker are optional; a nil one disables its
// grant type or endpoint.
type CompositeValidator struct {
	Clients       ClientValidator
	Scopes        ScopeValidator
	Redirects     RedirectURIValidator
	Grants        GrantSaver
	Authenticator ClientAuthenticator
	Tokens        BearerTokenSaver
	Bearer        BearerTokenValidator

	Codes   CodeExchanger
	Refresh RefreshTokenValidator
	Users   PasswordValidator
	Revoker TokenRevoker
}

var (
	_ Validator             = (*CompositeValidator)(nil)
	_ RefreshTokenValidator = (*CompositeValidator)(nil)
	_ PasswordValidator     = (*CompositeValidator)(nil)
)

func (c *CompositeValidator) ValidateClient(ctx context.Context, clientID string) (bool, error) {
	return c.Clients.ValidateClient(ctx, clientID)
}

func (c *CompositeValidator) ValidateScopes(ctx context.Context, clientID string, scopes scope.Scope) (bool, error) {
	return c.Scopes.ValidateScopes(ctx, clientID, scopes)
}

func (c *CompositeValidator) DefaultScopes(ctx context.Context, clientID string) (scope.Scope, error) {
	return c.Scopes.DefaultScopes(ctx, clientID)
}

func (c *CompositeValidator) ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) (bool, error) {
	return c.Redirects.ValidateRedirectURI(ctx, clientID, redirectURI)
}

func (c *CompositeValidator) DefaultRedirectURI(ctx context.Context, clientID string) (string, error) {
	return c.Redirects.DefaultRedirectURI(ctx, clientID)
}

func (c *CompositeValidator) SaveAuthorizationGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	return c.Grants.SaveAuthorizationGrant(ctx, req, grant)
}

func (c *CompositeValidator) SaveImplicitGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	return c.Grants.SaveImplicitGrant(ctx, req, grant)
}

func (c *CompositeValidator) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (bool, error) {
	return c.Authenticator.AuthenticateClient(ctx, clientID, clientSecret)
}

func (c *CompositeValidator) SaveBearerToken(ctx context.Context, token *BearerToken) error {
	return c.Tokens.SaveBearerToken(ctx, token)
}

func (c *CompositeValidator) ValidateBearerToken(ctx context.Context, token string) (*AccessGrant, error) {
	return c.Bearer.ValidateBearerToken(ctx, token)
}

func (c *CompositeValidator) ValidateAuthorizationCode(ctx context.Context, clientID, code, redirectURI string) (*CodeGrant, error) {
	if c.Codes == nil {
		return nil, oerror.New(oerror.UnsupportedGrantType, "")
	}
	return c.Codes.ValidateAuthorizationCode(ctx, clientID, code, redirectURI)
}

func (c *CompositeValidator) ValidateRefreshToken(ctx context.Context, clientID, refreshToken string) (*AccessGrant, error) {
	if c.Refresh == nil {
		return nil, oerror.New(oerror.UnsupportedGrantType, "")
	}
	return c.Refresh.ValidateRefreshToken(ctx, clientID, refreshToken)
}

func (c *CompositeValidator) ValidateUser(ctx context.Context, clientID, username, password string) (bool, error) {
	if c.Users == nil {
		return false, oerror.New(oerror.UnsupportedGrantType, "")
	}
	return c.Users.ValidateUser(ctx, clientID, username, password)
}

// RevokeToken without a Revoker is a no-op, which RFC 7009 treats the same
// as an unknown token.
func (c *CompositeValidator) RevokeToken(ctx context.Context, clientID, token, tokenTypeHint string) error {
	if c.Revoker == nil {
		return nil
	}
	return c.Revoker.RevokeToken(ctx, clientID, token, tokenTypeHint)
}
