package oserver

import (
	"time"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
	"github.com/Seann-Moser/oauth2core/utils"
)

type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeRefreshToken      GrantType = "refresh_token"
	GrantTypeClientCredentials GrantType = "client_credentials"
	GrantTypePassword          GrantType = "password"
	GrantTypeImplicit          GrantType = "implicit"
)

const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// stores client metadata (dynamic or admin-registered)
type OAuthClient struct {
	ClientID          string   `json:"client_id" bson:"client_id"`
	AccountID         string   `json:"account_id" bson:"account_id,omitempty"`
	ClientSecret      string   `json:"client_secret,omitempty" bson:"client_secret"`
	Name              string   `json:"name" bson:"name"`
	RedirectURIs      []string `json:"redirect_uris" bson:"redirect_uris"`
	Scopes            []string `json:"scopes" bson:"scopes"`
	TokenEndpointAuth string   `json:"token_endpoint_auth_method,omitempty" bson:"token_endpoint_auth_method,omitempty"`
	GrantTypes        []string `json:"grant_types" bson:"grant_types"`
	ResponseTypes     []string `json:"response_types" bson:"response_types"`
}

// Grant is what a response handler mints. Field order is the order in which
// the fields appear on the redirect URI.
type Grant utils.Params

func (g Grant) Get(key string) string {
	return utils.Params(g).Get(key)
}

// CodeGrant is what the host remembers about an authorization code.
type CodeGrant struct {
	ClientID string
	UserID   string
	// RedirectURI is the redirect_uri sent on the authorization request, empty
	// when the registered default was used.
	RedirectURI         string
	Scopes              scope.Scope
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// BearerToken is an issued access token and, optionally, its refresh token.
type BearerToken struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresIn    int64
	ExpiresAt    time.Time
	Scopes       scope.Scope
	ClientID     string
	UserID       string
	GrantType    GrantType
}

// AccessGrant is what a token was issued for.
type AccessGrant struct {
	ClientID  string
	UserID    string
	Scopes    scope.Scope
	ExpiresAt time.Time
}

// Expired reports whether the grant has an expiry and it has passed.
func (a *AccessGrant) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// /token success body
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
