package oserver

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/oauth/pkce"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// TokenEndpoint exchanges grants for access tokens. The grant types it
// serves depend on which capabilities the validator implements.
type TokenEndpoint struct {
	validator TokenValidator
	opts      options
}

func NewTokenEndpoint(v TokenValidator, opts ...Option) *TokenEndpoint {
	return &TokenEndpoint{validator: v, opts: newOptions(opts)}
}

// GrantTypes lists the grant types the endpoint can serve.
func (e *TokenEndpoint) GrantTypes() []GrantType {
	out := []GrantType{}
	if _, ok := e.validator.(CodeExchanger); ok {
		out = append(out, GrantTypeAuthorizationCode)
	}
	if _, ok := e.validator.(RefreshTokenValidator); ok {
		out = append(out, GrantTypeRefreshToken)
	}
	out = append(out, GrantTypeClientCredentials)
	if _, ok := e.validator.(PasswordValidator); ok {
		out = append(out, GrantTypePassword)
	}
	return out
}

// issue is what a grant resolves to before tokens are minted.
type issue struct {
	grantType    GrantType
	clientID     string
	userID       string
	scopes       scope.Scope
	allowRefresh bool
}

// CreateTokenResponse handles one token request. uri is the request URI, body
// the form-encoded request body. The result is always a complete response;
// protocol errors are rendered into it.
func (e *TokenEndpoint) CreateTokenResponse(ctx context.Context, uri, body string, headers http.Header) *Response {
	if headers == nil {
		headers = http.Header{}
	}
	form, oe := requestForm(uri, body)
	if oe != nil {
		return errorResponse(oe)
	}
	grantType := GrantType(form.Get("grant_type"))
	if grantType == "" {
		return errorResponse(oerror.New(oerror.InvalidRequest, "missing grant_type parameter"))
	}

	creds, oe := authenticateClient(ctx, e.validator, &e.opts, headers, form)
	if oe != nil {
		return clientErrorResponse(oe, headers, e.opts.cfg.Realm)
	}

	var (
		is  *issue
		err *oerror.Error
	)
	switch grantType {
	case GrantTypeAuthorizationCode:
		is, err = e.authorizationCode(ctx, creds.ID, form)
	case GrantTypeRefreshToken:
		is, err = e.refreshToken(ctx, creds.ID, form)
	case GrantTypeClientCredentials:
		is, err = e.clientCredentials(ctx, creds.ID, form)
	case GrantTypePassword:
		is, err = e.password(ctx, creds.ID, form)
	default:
		err = oerror.New(oerror.UnsupportedGrantType, "")
	}
	if err != nil {
		e.opts.logger.Debug("token request rejected",
			"client_id", creds.ID, "grant_type", string(grantType), "error", err.Code.String())
		return errorResponse(err)
	}

	resp, err := e.issueTokens(ctx, is)
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

func (e *TokenEndpoint) authorizationCode(ctx context.Context, clientID string, form url.Values) (*issue, *oerror.Error) {
	ex, ok := e.validator.(CodeExchanger)
	if !ok {
		return nil, oerror.New(oerror.UnsupportedGrantType, "")
	}
	code := form.Get("code")
	if code == "" {
		return nil, oerror.New(oerror.InvalidRequest, "missing code parameter")
	}
	redirectURI := form.Get("redirect_uri")

	grant, err := ex.ValidateAuthorizationCode(ctx, clientID, code, redirectURI)
	if err != nil {
		return nil, e.opts.callbackError("validate authorization code", err)
	}
	if grant == nil || grant.ClientID != clientID {
		return nil, oerror.New(oerror.InvalidGrant, "authorization code is invalid, expired or already used")
	}
	if grant.RedirectURI != "" && grant.RedirectURI != redirectURI {
		return nil, oerror.New(oerror.InvalidGrant, "redirect_uri does not match the authorization request")
	}

	verifier := form.Get("code_verifier")
	switch {
	case grant.CodeChallenge != "":
		if verifier == "" {
			return nil, oerror.New(oerror.InvalidGrant, "missing code_verifier")
		}
		method := grant.CodeChallengeMethod
		if method == "" {
			method = pkce.MethodPlain
		}
		if !pkce.Verify(method, verifier, grant.CodeChallenge) {
			return nil, oerror.New(oerror.InvalidGrant, "code_verifier does not match the code challenge")
		}
	case verifier != "":
		return nil, oerror.New(oerror.InvalidGrant, "code was not issued with a code challenge")
	}

	return &issue{
		grantType:    GrantTypeAuthorizationCode,
		clientID:     clientID,
		userID:       grant.UserID,
		scopes:       grant.Scopes,
		allowRefresh: true,
	}, nil
}

func (e *TokenEndpoint) refreshToken(ctx context.Context, clientID string, form url.Values) (*issue, *oerror.Error) {
	rv, ok := e.validator.(RefreshTokenValidator)
	if !ok {
		return nil, oerror.New(oerror.UnsupportedGrantType, "")
	}
	token := form.Get("refresh_token")
	if token == "" {
		return nil, oerror.New(oerror.InvalidRequest, "missing refresh_token parameter")
	}
	grant, err := rv.ValidateRefreshToken(ctx, clientID, token)
	if err != nil {
		return nil, e.opts.callbackError("validate refresh token", err)
	}
	if grant == nil || grant.ClientID != clientID || grant.Expired(e.opts.now()) {
		return nil, oerror.New(oerror.InvalidGrant, "refresh token is invalid or expired")
	}

	scopes := grant.Scopes
	if requested := scope.Parse(form.Get("scope")); !requested.Empty() {
		if !requested.Subset(grant.Scopes) {
			return nil, oerror.New(oerror.InvalidScope, "requested scope exceeds the granted scope")
		}
		scopes = requested
	}
	return &issue{
		grantType:    GrantTypeRefreshToken,
		clientID:     clientID,
		userID:       grant.UserID,
		scopes:       scopes,
		allowRefresh: true,
	}, nil
}

func (e *TokenEndpoint) clientCredentials(ctx context.Context, clientID string, form url.Values) (*issue, *oerror.Error) {
	scopes, err := e.requestScopes(ctx, clientID, form)
	if err != nil {
		return nil, err
	}
	return &issue{
		grantType: GrantTypeClientCredentials,
		clientID:  clientID,
		scopes:    scopes,
	}, nil
}

func (e *TokenEndpoint) password(ctx context.Context, clientID string, form url.Values) (*issue, *oerror.Error) {
	pv, ok := e.validator.(PasswordValidator)
	if !ok {
		return nil, oerror.New(oerror.UnsupportedGrantType, "")
	}
	username, password := form.Get("username"), form.Get("password")
	if username == "" {
		return nil, oerror.New(oerror.InvalidRequest, "missing username parameter")
	}
	if password == "" {
		return nil, oerror.New(oerror.InvalidRequest, "missing password parameter")
	}
	ok, err := pv.ValidateUser(ctx, clientID, username, password)
	if err != nil {
		return nil, e.opts.callbackError("validate user", err)
	}
	if !ok {
		return nil, oerror.New(oerror.InvalidGrant, "invalid resource owner credentials")
	}
	scopes, oe := e.requestScopes(ctx, clientID, form)
	if oe != nil {
		return nil, oe
	}
	return &issue{
		grantType:    GrantTypePassword,
		clientID:     clientID,
		userID:       username,
		scopes:       scopes,
		allowRefresh: true,
	}, nil
}

// requestScopes validates the scope parameter or falls back to the client's defaults.
func (e *TokenEndpoint) requestScopes(ctx context.Context, clientID string, form url.Values) (scope.Scope, *oerror.Error) {
	requested := scope.Parse(form.Get("scope"))
	if requested.Empty() {
		defaults, err := e.validator.DefaultScopes(ctx, clientID)
		if err != nil {
			return nil, e.opts.callbackError("default scopes", err)
		}
		if defaults.Empty() {
			return nil, oerror.New(oerror.InvalidScope, "no scope requested and no default scope registered")
		}
		return defaults, nil
	}
	ok, err := e.validator.ValidateScopes(ctx, clientID, requested)
	if err != nil {
		return nil, e.opts.callbackError("validate scopes", err)
	}
	if !ok {
		return nil, oerror.New(oerror.InvalidScope, "")
	}
	return requested, nil
}

func (e *TokenEndpoint) issueTokens(ctx context.Context, is *issue) (*Response, *oerror.Error) {
	access, err := e.opts.generateToken(ctx)
	if err != nil {
		return nil, e.opts.callbackError("generate token", err)
	}
	ttl := e.opts.cfg.AccessTokenExpiresIn
	tok := &BearerToken{
		AccessToken: access,
		TokenType:   e.opts.cfg.TokenType,
		ExpiresIn:   ttl.Seconds(),
		ExpiresAt:   e.opts.now().Add(ttl.Duration),
		Scopes:      is.scopes,
		ClientID:    is.clientID,
		UserID:      is.userID,
		GrantType:   is.grantType,
	}
	if is.allowRefresh && !e.opts.cfg.DisableRefreshTokens {
		refresh, err := e.opts.generateToken(ctx)
		if err != nil {
			return nil, e.opts.callbackError("generate refresh token", err)
		}
		tok.RefreshToken = refresh
	}
	if err := e.validator.SaveBearerToken(ctx, tok); err != nil {
		return nil, e.opts.callbackError("save bearer token", err)
	}

	resp, jerr := jsonResponse(http.StatusOK, TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		RefreshToken: tok.RefreshToken,
		Scope:        tok.Scopes.String(),
	})
	if jerr != nil {
		return nil, e.opts.callbackError("encode token response", jerr)
	}
	e.opts.logger.Debug("token issued",
		"client_id", is.clientID, "grant_type", string(is.grantType), "scope", tok.Scopes.String())
	return resp, nil
}
