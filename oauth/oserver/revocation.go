package oserver

import (
	"context"
	"net/http"
	"slices"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
)

var knownTokenTypeHints = []string{"access_token", "refresh_token"}

// RevocationEndpoint implements RFC 7009 token revocation.
type RevocationEndpoint struct {
	validator RevocationValidator
	opts      options
}

func NewRevocationEndpoint(v RevocationValidator, opts ...Option) *RevocationEndpoint {
	return &RevocationEndpoint{validator: v, opts: newOptions(opts)}
}

// CreateRevocationResponse revokes the token in body. Unknown tokens still
// get a 200 so clients cannot probe for valid ones.
func (e *RevocationEndpoint) CreateRevocationResponse(ctx context.Context, uri, body string, headers http.Header) *Response {
	if headers == nil {
		headers = http.Header{}
	}
	form, oe := requestForm(uri, body)
	if oe != nil {
		return errorResponse(oe)
	}
	token := form.Get("token")
	if token == "" {
		return errorResponse(oerror.New(oerror.InvalidRequest, "missing token parameter"))
	}

	creds, oe := authenticateClient(ctx, e.validator, &e.opts, headers, form)
	if oe != nil {
		return clientErrorResponse(oe, headers, e.opts.cfg.Realm)
	}

	hint := form.Get("token_type_hint")
	if slices.Contains(knownTokenTypeHints, hint) && !slices.Contains(e.opts.cfg.RevocationTokenTypes, hint) {
		return errorResponse(oerror.New(oerror.UnsupportedTokenType, ""))
	}

	if err := e.validator.RevokeToken(ctx, creds.ID, token, hint); err != nil {
		return errorResponse(e.opts.callbackError("revoke token", err))
	}
	e.opts.logger.Debug("token revoked", "client_id", creds.ID, "token_type_hint", hint)
	return emptyResponse()
}
