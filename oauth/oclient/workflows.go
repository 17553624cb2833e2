package oclient

import (
	"fmt"

	"github.com/Seann-Moser/oauth2core/oauth/pkce"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
	"github.com/Seann-Moser/oauth2core/utils"
)

// GrantClient is implemented by every workflow client.
type GrantClient interface {
	Base() *Client
}

// AuthorizationRequestPreparer builds authorization endpoint URIs. Only the
// redirection based workflows implement it.
type AuthorizationRequestPreparer interface {
	PrepareRequestURI(uri, redirectURI string, sc scope.Scope, state string, extra ...utils.Param) (string, error)
}

type AuthorizationResponseParser interface {
	ParseAuthorizationResponse(uri, state string) (*Response, error)
}

type ImplicitResponseParser interface {
	ParseImplicitResponse(uri, state string, sc scope.Scope) (*Response, error)
}

type TokenResponseParser interface {
	ParseTokenResponse(body string, sc scope.Scope) (*Response, error)
}

var (
	_ AuthorizationRequestPreparer = (*WebApplicationClient)(nil)
	_ AuthorizationRequestPreparer = (*UserAgentClient)(nil)
	_ AuthorizationResponseParser  = (*WebApplicationClient)(nil)
	_ ImplicitResponseParser       = (*UserAgentClient)(nil)
	_ TokenResponseParser          = (*WebApplicationClient)(nil)
	_ TokenResponseParser          = (*ClientCredentialsClient)(nil)
	_ TokenResponseParser          = (*PasswordCredentialsClient)(nil)
	_ GrantClient                  = (*ClientCredentialsClient)(nil)
	_ GrantClient                  = (*PasswordCredentialsClient)(nil)
)

// PrepareRequestURI builds an authorization request URI for any workflow client.
// Credentials-only clients return ErrUnsupportedOperation.
func PrepareRequestURI(c GrantClient, uri, redirectURI string, sc scope.Scope, state string, extra ...utils.Param) (string, error) {
	p, ok := c.(AuthorizationRequestPreparer)
	if !ok {
		return "", fmt.Errorf("%w: %T cannot build authorization requests", ErrUnsupportedOperation, c)
	}
	return p.PrepareRequestURI(uri, redirectURI, sc, state, extra...)
}

// WebApplicationClient runs the authorization code grant.
type WebApplicationClient struct {
	Client

	codeVerifier    string
	challengeMethod string
}

func NewWebApplicationClient(clientID string, opts ...Option) *WebApplicationClient {
	c := &WebApplicationClient{}
	c.init(clientID, opts)
	return c
}

// EnablePKCE generates a code verifier. Later authorization URIs carry the
// challenge and token bodies carry the verifier. The verifier is returned so
// callers can keep it across processes.
func (c *WebApplicationClient) EnablePKCE(method string) (string, error) {
	if method == "" {
		method = pkce.MethodS256
	}
	if !pkce.SupportedMethod(method) {
		return "", fmt.Errorf("%w: code_challenge_method %q", ErrUnsupportedOperation, method)
	}
	verifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		return "", err
	}
	c.codeVerifier = verifier
	c.challengeMethod = method
	return verifier, nil
}

// SetCodeVerifier restores a verifier created by EnablePKCE.
func (c *WebApplicationClient) SetCodeVerifier(method, verifier string) {
	c.challengeMethod = method
	c.codeVerifier = verifier
}

func (c *WebApplicationClient) PrepareRequestURI(uri, redirectURI string, sc scope.Scope, state string, extra ...utils.Param) (string, error) {
	if c.codeVerifier != "" {
		challenge, err := pkce.Challenge(c.challengeMethod, c.codeVerifier)
		if err != nil {
			return "", err
		}
		extra = append(utils.Params{
			{Key: "code_challenge", Value: challenge},
			{Key: "code_challenge_method", Value: c.challengeMethod},
		}, extra...)
	}
	return prepareGrantURI(uri, c.ClientID, ResponseTypeCode, redirectURI, sc, state, extra)
}

// PrepareRequestBody builds the authorization_code token request. An empty code
// uses the one parsed from the authorization response.
func (c *WebApplicationClient) PrepareRequestBody(body, code, redirectURI string, extra ...utils.Param) (string, error) {
	if code == "" {
		code = c.Code
	}
	if code == "" {
		return "", fmt.Errorf("%w: code", ErrMissingParameter)
	}
	fields := utils.Params{{Key: "code", Value: code}}
	if redirectURI != "" {
		fields = append(fields, utils.Param{Key: "redirect_uri", Value: redirectURI})
	}
	if c.ClientID != "" {
		fields = append(fields, utils.Param{Key: "client_id", Value: c.ClientID})
	}
	if c.codeVerifier != "" {
		fields = append(fields, utils.Param{Key: "code_verifier", Value: c.codeVerifier})
	}
	return prepareTokenRequest(body, GrantTypeAuthorizationCode, fields, nil, extra), nil
}

// ParseAuthorizationResponse reads code and state from the query of uri.
func (c *WebApplicationClient) ParseAuthorizationResponse(uri, state string) (*Response, error) {
	resp, err := parseAuthorizationCodeResponse(uri, state)
	if err != nil {
		return nil, err
	}
	c.populateAttributes(resp)
	return resp, nil
}

// UserAgentClient runs the implicit grant.
type UserAgentClient struct {
	Client
}

func NewUserAgentClient(clientID string, opts ...Option) *UserAgentClient {
	c := &UserAgentClient{}
	c.init(clientID, opts)
	return c
}

func (c *UserAgentClient) PrepareRequestURI(uri, redirectURI string, sc scope.Scope, state string, extra ...utils.Param) (string, error) {
	return prepareGrantURI(uri, c.ClientID, ResponseTypeToken, redirectURI, sc, state, extra)
}

// ParseImplicitResponse reads the token from the fragment of uri. Parameters in
// the query component are ignored.
func (c *UserAgentClient) ParseImplicitResponse(uri, state string, sc scope.Scope) (*Response, error) {
	resp, err := parseImplicitResponse(uri, state, sc)
	if err != nil {
		return nil, err
	}
	c.noteScopeChange(resp, sc)
	c.populateAttributes(resp)
	return resp, nil
}

// ClientCredentialsClient runs the client credentials grant.
type ClientCredentialsClient struct {
	Client
}

func NewClientCredentialsClient(clientID string, opts ...Option) *ClientCredentialsClient {
	c := &ClientCredentialsClient{}
	c.init(clientID, opts)
	return c
}

func (c *ClientCredentialsClient) PrepareRequestBody(body string, sc scope.Scope, extra ...utils.Param) (string, error) {
	return prepareTokenRequest(body, GrantTypeClientCredentials, nil, sc, extra), nil
}

// PasswordCredentialsClient runs the resource owner password credentials grant.
type PasswordCredentialsClient struct {
	Client

	Username string
	Password string
}

func NewPasswordCredentialsClient(clientID, username, password string, opts ...Option) *PasswordCredentialsClient {
	c := &PasswordCredentialsClient{Username: username, Password: password}
	c.init(clientID, opts)
	return c
}

func (c *PasswordCredentialsClient) PrepareRequestBody(body string, sc scope.Scope, extra ...utils.Param) (string, error) {
	if c.Username == "" {
		return "", fmt.Errorf("%w: username", ErrMissingParameter)
	}
	if c.Password == "" {
		return "", fmt.Errorf("%w: password", ErrMissingParameter)
	}
	fields := utils.Params{
		{Key: "username", Value: c.Username},
		{Key: "password", Value: c.Password},
	}
	return prepareTokenRequest(body, GrantTypePassword, fields, sc, extra), nil
}
