package oserver

import (
	"context"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// The interfaces below are what a host implements to plug its client registry,
// grant persistence and token storage into the endpoints. Returning an
// *oerror.Error from any of them sends that error to the client; any other error
// is reported as server_error (temporarily_unavailable for deadlines).

type ClientValidator interface {
	ValidateClient(ctx context.Context, clientID string) (bool, error)
}

type ScopeValidator interface {
	ValidateScopes(ctx context.Context, clientID string, scopes scope.Scope) (bool, error)
	DefaultScopes(ctx context.Context, clientID string) (scope.Scope, error)
}

type RedirectURIValidator interface {
	ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) (bool, error)
	// DefaultRedirectURI returns "" when the client has no default.
	DefaultRedirectURI(ctx context.Context, clientID string) (string, error)
}

// GrantSaver persists minted grants. req carries client_id and state.
type GrantSaver interface {
	SaveAuthorizationGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error
	SaveImplicitGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error
}

// AuthorizationValidator is everything the authorization endpoint needs.
type AuthorizationValidator interface {
	ClientValidator
	ScopeValidator
	RedirectURIValidator
	GrantSaver
}

type TokenGenerator interface {
	GenerateToken(ctx context.Context) (string, error)
}

type TokenGeneratorFunc func(ctx context.Context) (string, error)

func (f TokenGeneratorFunc) GenerateToken(ctx context.Context) (string, error) {
	return f(ctx)
}

type ClientAuthenticator interface {
	// AuthenticateClient checks a client's credentials. Public clients send an
	// empty secret.
	AuthenticateClient(ctx context.Context, clientID, clientSecret string) (bool, error)
}

type CodeExchanger interface {
	// ValidateAuthorizationCode consumes a one-time code. A nil grant means the
	// code is unknown, expired, already used or belongs to another client.
	ValidateAuthorizationCode(ctx context.Context, clientID, code, redirectURI string) (*CodeGrant, error)
}

type RefreshTokenValidator interface {
	// ValidateRefreshToken returns nil when the token is unknown or belongs to another client.
	ValidateRefreshToken(ctx context.Context, clientID, refreshToken string) (*AccessGrant, error)
}

type PasswordValidator interface {
	ValidateUser(ctx context.Context, clientID, username, password string) (bool, error)
}

type BearerTokenSaver interface {
	SaveBearerToken(ctx context.Context, token *BearerToken) error
}

type BearerTokenValidator interface {
	// ValidateBearerToken returns nil when the token is unknown or revoked.
	ValidateBearerToken(ctx context.Context, token string) (*AccessGrant, error)
}

type TokenRevoker interface {
	RevokeToken(ctx context.Context, clientID, token, tokenTypeHint string) error
}

// TokenValidator is what the token endpoint requires. Grant types beyond
// client_credentials are enabled when the same value also implements
// CodeExchanger, RefreshTokenValidator or PasswordValidator.
type TokenValidator interface {
	ClientAuthenticator
	ScopeValidator
	BearerTokenSaver
}

type RevocationValidator interface {
	ClientAuthenticator
	TokenRevoker
}

// Validator is the full set of host callbacks used by Server.
type Validator interface {
	AuthorizationValidator
	TokenValidator
	CodeExchanger
	BearerTokenValidator
	TokenRevoker
}
