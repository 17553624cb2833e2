package oserver

import (
	"context"
	"errors"
	"strconv"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/utils"
)

// ResponseTypeHandler answers an authorization request for one response_type.
type ResponseTypeHandler interface {
	// UsesFragment reports whether responses go in the redirect fragment
	// instead of the query.
	UsesFragment() bool
	CreateAuthorizationResponse(ctx context.Context, e *AuthorizationEndpoint, req *AuthorizationRequest) (string, error)
}

var (
	_ ResponseTypeHandler = AuthorizationCodeGrant{}
	_ ResponseTypeHandler = ImplicitGrant{}
)

// AuthorizationCodeGrant handles response_type=code.
type AuthorizationCodeGrant struct{}

func (AuthorizationCodeGrant) UsesFragment() bool { return false }

func (g AuthorizationCodeGrant) CreateAuthorizationResponse(ctx context.Context, e *AuthorizationEndpoint, req *AuthorizationRequest) (string, error) {
	return respond(ctx, e, req, g.UsesFragment(), func() (Grant, error) {
		code, err := e.opts.generateToken(ctx)
		if err != nil {
			return nil, e.opts.callbackError("generate code", err)
		}
		grant := Grant{{Key: "code", Value: code}}
		if req.State != "" {
			grant = append(grant, utils.Param{Key: "state", Value: req.State})
		}
		if err := e.validator.SaveAuthorizationGrant(ctx, req, grant); err != nil {
			return nil, e.opts.callbackError("save authorization grant", err)
		}
		return grant, nil
	})
}

// ImplicitGrant handles response_type=token.
type ImplicitGrant struct{}

func (ImplicitGrant) UsesFragment() bool { return true }

func (g ImplicitGrant) CreateAuthorizationResponse(ctx context.Context, e *AuthorizationEndpoint, req *AuthorizationRequest) (string, error) {
	return respond(ctx, e, req, g.UsesFragment(), func() (Grant, error) {
		token, err := e.opts.generateToken(ctx)
		if err != nil {
			return nil, e.opts.callbackError("generate token", err)
		}
		grant := Grant{
			{Key: "access_token", Value: token},
			{Key: "token_type", Value: e.opts.cfg.TokenType},
			{Key: "expires_in", Value: strconv.FormatInt(e.opts.cfg.ImplicitExpiresIn.Seconds(), 10)},
			{Key: "scope", Value: req.Scopes.String()},
		}
		if req.State != "" {
			grant = append(grant, utils.Param{Key: "state", Value: req.State})
		}
		if err := e.validator.SaveImplicitGrant(ctx, req, grant); err != nil {
			return nil, e.opts.callbackError("save implicit grant", err)
		}
		return grant, nil
	})
}

// respond re-validates req, mints a grant and encodes it onto the redirect URI.
// Protocol errors become error redirects when a safe target exists.
func respond(ctx context.Context, e *AuthorizationEndpoint, req *AuthorizationRequest, fragment bool, mint func() (Grant, error)) (string, error) {
	// authorized scopes are kept across re-validation
	authorized := req.Scopes
	if err := e.ValidateAuthorizationParameters(ctx, req); err != nil {
		return e.ErrorResponse(ctx, req, err)
	}
	if !authorized.Empty() {
		req.Scopes = authorized
		req.scopesDefaulted = false
	}

	grant, err := mint()
	if err != nil {
		var oe *oerror.Error
		if errors.As(err, &oe) {
			return e.ErrorResponse(ctx, req, oe)
		}
		return "", err
	}

	uri, err := utils.AddParamsToURI(req.RedirectURI, utils.Params(grant), fragment)
	if err != nil {
		return e.ErrorResponse(ctx, req, oerror.New(oerror.ServerError, "could not build redirect uri"))
	}
	e.opts.logger.Debug("authorization granted",
		"client_id", req.ClientID, "response_type", req.ResponseType, "scope", req.Scopes.String())
	return uri, nil
}
