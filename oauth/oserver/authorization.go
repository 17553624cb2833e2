package oserver

import (
	"context"
	"errors"
	"net/url"
	"sort"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/oauth/pkce"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
	"github.com/Seann-Moser/oauth2core/utils"
)

// AuthorizationRequest is the state of one authorization request. It is created
// by ParseAuthorizationParameters and threaded through validation and the
// response handlers; the endpoint itself keeps no per-request state.
type AuthorizationRequest struct {
	ClientID            string
	ResponseType        string
	RedirectURI         string
	Scopes              scope.Scope
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	// UserID identifies the resource owner. The host sets it after
	// authenticating the user and before CreateAuthorizationResponse.
	UserID string

	// Extra holds every query parameter not listed above.
	Extra url.Values

	validated         bool
	redirectResolved  bool
	redirectDefaulted bool
	scopesDefaulted   bool
}

// Validated reports whether the last validation pass succeeded.
func (r *AuthorizationRequest) Validated() bool {
	return r.validated
}

// RequestedRedirectURI is the redirect_uri the client sent, or "" when the
// registered default is in use.
func (r *AuthorizationRequest) RequestedRedirectURI() string {
	if r.redirectDefaulted {
		return ""
	}
	return r.RedirectURI
}

var knownAuthorizationParams = map[string]struct{}{
	"client_id":             {},
	"response_type":         {},
	"redirect_uri":          {},
	"scope":                 {},
	"state":                 {},
	"code_challenge":        {},
	"code_challenge_method": {},
}

// AuthorizationEndpoint validates authorization requests and dispatches them
// to the handler registered for their response_type. It is safe for concurrent use.
type AuthorizationEndpoint struct {
	validator AuthorizationValidator
	handlers  map[string]ResponseTypeHandler
	opts      options
}

func NewAuthorizationEndpoint(v AuthorizationValidator, opts ...Option) *AuthorizationEndpoint {
	o := newOptions(opts)
	handlers := map[string]ResponseTypeHandler{
		ResponseTypeCode:  AuthorizationCodeGrant{},
		ResponseTypeToken: ImplicitGrant{},
	}
	for name, h := range o.handlers {
		handlers[name] = h
	}
	return &AuthorizationEndpoint{
		validator: v,
		handlers:  handlers,
		opts:      o,
	}
}

// ResponseTypes lists the registered response types.
func (e *AuthorizationEndpoint) ResponseTypes() []string {
	out := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseAuthorizationParameters reads the request parameters from the query of uri.
// Empty parameters are treated as absent. Nothing is validated here.
func (e *AuthorizationEndpoint) ParseAuthorizationParameters(uri string) (*AuthorizationRequest, error) {
	q, err := utils.QueryParams(uri)
	if err != nil {
		if errors.Is(err, utils.ErrDuplicateParameter) {
			return nil, oerror.New(oerror.InvalidRequest, err.Error())
		}
		return nil, oerror.New(oerror.InvalidRequest, "malformed request uri")
	}
	req := &AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		ResponseType:        q.Get("response_type"),
		RedirectURI:         q.Get("redirect_uri"),
		Scopes:              scope.Parse(q.Get("scope")),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Extra:               url.Values{},
	}
	for k, v := range q {
		if _, ok := knownAuthorizationParams[k]; !ok {
			req.Extra[k] = v
		}
	}
	return req, nil
}

// ValidateAuthorizationParameters checks req in a fixed order and fills in the
// default scopes and redirect_uri. The first failure is returned:
//
//  1. client_id present (invalid_request)
//  2. response_type present (invalid_request)
//  3. client known to the host (unauthorized_client)
//  4. response_type registered (unsupported_response_type)
//  5. scope allowed, or defaulted (invalid_scope)
//  6. redirect_uri absolute (invalid_request) and registered (access_denied), or defaulted (access_denied)
//  7. code_challenge_method supported (invalid_request)
func (e *AuthorizationEndpoint) ValidateAuthorizationParameters(ctx context.Context, req *AuthorizationRequest) error {
	req.validated = false
	req.redirectResolved = false
	fail := func(code oerror.Code, description string) error {
		e.opts.logger.Debug("authorization request rejected",
			"client_id", req.ClientID, "error", code.String(), "description", description)
		return oerror.New(code, description).WithState(req.State)
	}

	if req.ClientID == "" {
		return fail(oerror.InvalidRequest, "missing client_id parameter")
	}
	if req.ResponseType == "" {
		return fail(oerror.InvalidRequest, "missing response_type parameter")
	}

	ok, err := e.validator.ValidateClient(ctx, req.ClientID)
	if err != nil {
		return e.opts.callbackError("validate client", err).WithState(req.State)
	}
	if !ok {
		return fail(oerror.UnauthorizedClient, "unknown client_id")
	}

	if _, ok := e.handlers[req.ResponseType]; !ok {
		return fail(oerror.UnsupportedResponseType, "response_type "+req.ResponseType+" is not supported")
	}

	if req.scopesDefaulted {
		req.Scopes = nil
		req.scopesDefaulted = false
	}
	if !req.Scopes.Empty() {
		ok, err := e.validator.ValidateScopes(ctx, req.ClientID, req.Scopes)
		if err != nil {
			return e.opts.callbackError("validate scopes", err).WithState(req.State)
		}
		if !ok {
			return fail(oerror.InvalidScope, "")
		}
	} else {
		defaults, err := e.validator.DefaultScopes(ctx, req.ClientID)
		if err != nil {
			return e.opts.callbackError("default scopes", err).WithState(req.State)
		}
		if defaults.Empty() {
			return fail(oerror.InvalidScope, "no scope requested and no default scope registered")
		}
		req.Scopes = defaults
		req.scopesDefaulted = true
	}

	if err := e.resolveRedirectURI(ctx, req); err != nil {
		return err
	}

	if req.CodeChallengeMethod != "" && !pkce.SupportedMethod(req.CodeChallengeMethod) {
		return fail(oerror.InvalidRequest, "unsupported code_challenge_method")
	}
	if req.CodeChallenge != "" && req.CodeChallengeMethod == "" {
		req.CodeChallengeMethod = pkce.MethodPlain
	}
	if e.opts.cfg.RequirePKCE && req.ResponseType == ResponseTypeCode && req.CodeChallenge == "" {
		return fail(oerror.InvalidRequest, "code_challenge is required")
	}

	req.validated = true
	return nil
}

func (e *AuthorizationEndpoint) resolveRedirectURI(ctx context.Context, req *AuthorizationRequest) error {
	req.redirectResolved = false
	if req.redirectDefaulted {
		req.RedirectURI = ""
		req.redirectDefaulted = false
	}

	if req.RedirectURI != "" {
		if !utils.IsAbsoluteURI(req.RedirectURI) {
			return oerror.New(oerror.InvalidRequest, "redirect_uri must be an absolute URI").WithState(req.State)
		}
		ok, err := e.validator.ValidateRedirectURI(ctx, req.ClientID, req.RedirectURI)
		if err != nil {
			return e.opts.callbackError("validate redirect uri", err).WithState(req.State)
		}
		if !ok {
			return oerror.New(oerror.AccessDenied, "redirect_uri is not registered for this client").WithState(req.State)
		}
		req.redirectResolved = true
		return nil
	}

	uri, err := e.validator.DefaultRedirectURI(ctx, req.ClientID)
	if err != nil {
		return e.opts.callbackError("default redirect uri", err).WithState(req.State)
	}
	if uri == "" || !utils.IsAbsoluteURI(uri) {
		return oerror.New(oerror.AccessDenied, "no redirect_uri given and no default registered").WithState(req.State)
	}
	req.RedirectURI = uri
	req.redirectDefaulted = true
	req.redirectResolved = true
	return nil
}

// CreateAuthorizationResponse finishes an approved request. The request scope is
// replaced with the scopes the resource owner authorized, and the handler for
// the response_type produces the redirect URI. The returned error is set only
// when no safe redirect target exists; the host must then show it directly.
func (e *AuthorizationEndpoint) CreateAuthorizationResponse(ctx context.Context, req *AuthorizationRequest, authorized scope.Scope) (string, error) {
	req.Scopes = authorized
	req.scopesDefaulted = false

	h, ok := e.handlers[req.ResponseType]
	if !ok {
		return e.ErrorResponse(ctx, req, oerror.New(oerror.UnsupportedResponseType, ""))
	}
	return h.CreateAuthorizationResponse(ctx, e, req)
}

// ErrorResponse turns err into an error redirect for req. Errors that occur
// before the client and its redirect_uri are trusted are returned instead.
func (e *AuthorizationEndpoint) ErrorResponse(ctx context.Context, req *AuthorizationRequest, err error) (string, error) {
	oe := oerror.From(err).WithState(req.State)
	if !e.redirectable(ctx, req, oe) {
		return "", oe
	}
	fragment := false
	if h, ok := e.handlers[req.ResponseType]; ok {
		fragment = h.UsesFragment()
	}
	uri, aerr := utils.AddParamsToURI(req.RedirectURI, oe.Pairs(), fragment)
	if aerr != nil {
		return "", oe
	}
	return uri, nil
}

func (e *AuthorizationEndpoint) redirectable(ctx context.Context, req *AuthorizationRequest, oe *oerror.Error) bool {
	if req.ClientID == "" || req.ResponseType == "" || oe.Code == oerror.UnauthorizedClient {
		return false
	}
	if req.redirectResolved {
		return true
	}
	// validation stopped before the redirect_uri was checked
	ok, err := e.validator.ValidateClient(ctx, req.ClientID)
	if err != nil || !ok {
		return false
	}
	return e.resolveRedirectURI(ctx, req) == nil
}
