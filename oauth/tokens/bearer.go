// Package tokens attaches access tokens to outgoing resource requests.
package tokens

import (
	"net/http"

	"github.com/Seann-Moser/oauth2core/utils"
)

const (
	TypeBearer = "Bearer"
	TypeMAC    = "MAC"
)

// PrepareBearerHeaders returns a copy of headers carrying "Authorization: Bearer <token>".
func PrepareBearerHeaders(token string, headers http.Header) http.Header {
	out := cloneHeader(headers)
	out.Set("Authorization", TypeBearer+" "+token)
	return out
}

// PrepareBearerURI appends access_token to the query of uri.
func PrepareBearerURI(token, uri string) (string, error) {
	return utils.AddParamsToURI(uri, utils.Params{{Key: "access_token", Value: token}}, false)
}

// PrepareBearerBody appends access_token to a form body.
func PrepareBearerBody(token, body string) string {
	return utils.AddParamsToBody(body, utils.Params{{Key: "access_token", Value: token}})
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}
