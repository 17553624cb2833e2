package oserver

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/utils"
)

type clientCredentials struct {
	ID     string
	Secret string
	Basic  bool
}

// readClientCredentials takes the client credentials from HTTP Basic or from
// the form body. Using both at once is rejected.
func readClientCredentials(headers http.Header, form url.Values) (clientCredentials, *oerror.Error) {
	var creds clientCredentials
	if headers.Get("Authorization") != "" {
		r := &http.Request{Header: headers}
		id, secret, ok := r.BasicAuth()
		if ok {
			// RFC 6749 2.3.1 form-encodes both values before base64
			if v, err := url.QueryUnescape(id); err == nil {
				id = v
			}
			if v, err := url.QueryUnescape(secret); err == nil {
				secret = v
			}
			creds = clientCredentials{ID: id, Secret: secret, Basic: true}
		}
	}
	if form.Has("client_secret") || (form.Has("client_id") && !creds.Basic) {
		if creds.Basic {
			return creds, oerror.New(oerror.InvalidRequest, "client credentials sent in more than one way")
		}
		creds = clientCredentials{ID: form.Get("client_id"), Secret: form.Get("client_secret")}
	}
	if creds.Basic && form.Has("client_id") && form.Get("client_id") != creds.ID {
		return creds, oerror.New(oerror.InvalidRequest, "client_id does not match the authenticated client")
	}
	if creds.ID == "" {
		return creds, oerror.New(oerror.InvalidClient, "client authentication required")
	}
	return creds, nil
}

func authenticateClient(ctx context.Context, a ClientAuthenticator, o *options, headers http.Header, form url.Values) (clientCredentials, *oerror.Error) {
	creds, oe := readClientCredentials(headers, form)
	if oe != nil {
		return creds, oe
	}
	ok, err := a.AuthenticateClient(ctx, creds.ID, creds.Secret)
	if err != nil {
		return creds, o.callbackError("authenticate client", err)
	}
	if !ok {
		o.logger.Debug("client authentication failed", "client_id", creds.ID, "basic", creds.Basic)
		return creds, oerror.New(oerror.InvalidClient, "client authentication failed")
	}
	return creds, nil
}

// clientErrorResponse adds the Basic challenge when an invalid_client error
// follows an Authorization header.
func clientErrorResponse(oe *oerror.Error, headers http.Header, realm string) *Response {
	resp := errorResponse(oe)
	if oe.Code == oerror.InvalidClient && headers.Get("Authorization") != "" {
		resp.Headers.Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	}
	return resp
}

// requestForm parses the body and rejects credentials sent in the query.
func requestForm(uri, body string) (url.Values, *oerror.Error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, oerror.New(oerror.InvalidRequest, "malformed request uri")
	}
	q := u.Query()
	for _, k := range []string{"client_secret", "password", "refresh_token", "code", "token"} {
		if q.Has(k) {
			return nil, oerror.New(oerror.InvalidRequest, k+" must not be sent in the query")
		}
	}
	form, err := utils.ParseForm(body)
	if err != nil {
		return nil, oerror.New(oerror.InvalidRequest, err.Error())
	}
	return form, nil
}
