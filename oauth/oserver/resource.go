package oserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// ErrNoAccessToken means the request carried no credentials at all. Per
// RFC 6750 3.1 the challenge for it has no error attribute.
var ErrNoAccessToken = errors.New("no access token in request")

// ResourceEndpoint authorizes requests against protected resources.
type ResourceEndpoint struct {
	validator BearerTokenValidator
	opts      options
}

func NewResourceEndpoint(v BearerTokenValidator, opts ...Option) *ResourceEndpoint {
	return &ResourceEndpoint{validator: v, opts: newOptions(opts)}
}

// VerifyRequest extracts the bearer token from the Authorization header, the
// form body or the query and checks it grants every scope in required.
func (e *ResourceEndpoint) VerifyRequest(ctx context.Context, uri, method, body string, headers http.Header, required scope.Scope) (*AccessGrant, error) {
	token, err := extractBearerToken(uri, method, body, headers)
	if err != nil {
		return nil, err
	}
	grant, verr := e.validator.ValidateBearerToken(ctx, token)
	if verr != nil {
		return nil, e.opts.callbackError("validate bearer token", verr)
	}
	if grant == nil {
		return nil, oerror.New(oerror.InvalidToken, "access token is invalid")
	}
	if grant.Expired(e.opts.now()) {
		return nil, oerror.New(oerror.InvalidToken, "access token expired")
	}
	if !required.Subset(grant.Scopes) {
		e.opts.logger.Debug("insufficient scope",
			"client_id", grant.ClientID, "required", required.String(), "granted", grant.Scopes.String())
		return nil, oerror.New(oerror.InsufficientScope, "")
	}
	return grant, nil
}

// extractBearerToken only cares about access_token. Other parameters belong to
// the resource and may repeat.
func extractBearerToken(uri, method, body string, headers http.Header) (string, error) {
	var found []string

	if auth := headers.Get("Authorization"); auth != "" {
		scheme, value, _ := strings.Cut(auth, " ")
		if !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
			return "", oerror.New(oerror.InvalidRequest, "unsupported authorization scheme")
		}
		found = append(found, strings.TrimSpace(value))
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", oerror.New(oerror.InvalidRequest, "malformed request uri")
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", oerror.New(oerror.InvalidRequest, err.Error())
	}
	found = append(found, q["access_token"]...)

	// RFC 6750 2.2 only allows form bodies on requests that have one
	if body != "" && method != http.MethodGet &&
		strings.HasPrefix(headers.Get("Content-Type"), string(ContentTypeForm)) {
		form, err := url.ParseQuery(body)
		if err != nil {
			return "", oerror.New(oerror.InvalidRequest, err.Error())
		}
		found = append(found, form["access_token"]...)
	}

	switch len(found) {
	case 0:
		return "", ErrNoAccessToken
	case 1:
		if found[0] == "" {
			return "", oerror.New(oerror.InvalidRequest, "empty access_token")
		}
		return found[0], nil
	default:
		return "", oerror.New(oerror.InvalidRequest, "access token sent in more than one way")
	}
}

// Challenge is the WWW-Authenticate value for a failed VerifyRequest.
func (e *ResourceEndpoint) Challenge(err error) string {
	var b strings.Builder
	b.WriteString(`Bearer realm="`)
	b.WriteString(e.opts.cfg.Realm)
	b.WriteByte('"')
	if err == nil || errors.Is(err, ErrNoAccessToken) {
		return b.String()
	}
	oe := oerror.From(err)
	b.WriteString(`, error="`)
	b.WriteString(oe.Code.String())
	b.WriteByte('"')
	if oe.Description != "" {
		b.WriteString(`, error_description="`)
		b.WriteString(strings.ReplaceAll(oe.Description, `"`, `'`))
		b.WriteByte('"')
	}
	return b.String()
}

// StatusCode is the HTTP status for a failed VerifyRequest.
func StatusCode(err error) int {
	if errors.Is(err, ErrNoAccessToken) {
		return http.StatusUnauthorized
	}
	return oerror.From(err).Code.StatusCode()
}
