package oerror

import "net/http"

// Code is the closed set of OAuth2 protocol errors. Each code has a fixed wire name.
type Code int

const (
	InvalidRequest Code = iota + 1
	UnauthorizedClient
	AccessDenied
	UnsupportedResponseType
	InvalidScope
	ServerError
	TemporarilyUnavailable

	// token endpoint, RFC 6749 5.2
	InvalidClient
	InvalidGrant
	UnsupportedGrantType

	// revocation, RFC 7009 2.2.1
	UnsupportedTokenType

	// resource requests, RFC 6750 3.1
	InvalidToken
	InsufficientScope
)

type codeInfo struct {
	wire        string
	description string
	status      int
}

var codes = map[Code]codeInfo{
	InvalidRequest: {
		"invalid_request",
		"The request is missing a required parameter, includes an invalid parameter value, or is otherwise malformed.",
		http.StatusBadRequest,
	},
	UnauthorizedClient: {
		"unauthorized_client",
		"The client is not authorized to request an authorization code using this method.",
		http.StatusBadRequest,
	},
	AccessDenied: {
		"access_denied",
		"The resource owner or authorization server denied the request.",
		http.StatusForbidden,
	},
	UnsupportedResponseType: {
		"unsupported_response_type",
		"The authorization server does not support obtaining an authorization code using this method.",
		http.StatusBadRequest,
	},
	InvalidScope: {
		"invalid_scope",
		"The requested scope is invalid, unknown, or malformed.",
		http.StatusBadRequest,
	},
	ServerError: {
		"server_error",
		"The authorization server encountered an unexpected condition which prevented it from fulfilling the request.",
		http.StatusInternalServerError,
	},
	TemporarilyUnavailable: {
		"temporarily_unavailable",
		"The authorization server is currently unable to handle the request due to a temporary overloading or maintenance of the server.",
		http.StatusServiceUnavailable,
	},
	InvalidClient: {
		"invalid_client",
		"Client authentication failed.",
		http.StatusUnauthorized,
	},
	InvalidGrant: {
		"invalid_grant",
		"The provided authorization grant or refresh token is invalid, expired, revoked, or was issued to another client.",
		http.StatusBadRequest,
	},
	UnsupportedGrantType: {
		"unsupported_grant_type",
		"The authorization grant type is not supported by the authorization server.",
		http.StatusBadRequest,
	},
	UnsupportedTokenType: {
		"unsupported_token_type",
		"The authorization server does not support the revocation of the presented token type.",
		http.StatusBadRequest,
	},
	InvalidToken: {
		"invalid_token",
		"The access token provided is expired, revoked, malformed, or invalid.",
		http.StatusUnauthorized,
	},
	InsufficientScope: {
		"insufficient_scope",
		"The request requires higher privileges than provided by the access token.",
		http.StatusForbidden,
	},
}

var byWire = func() map[string]Code {
	m := make(map[string]Code, len(codes))
	for c, info := range codes {
		m[info.wire] = c
	}
	return m
}()

// String returns the wire code, e.g. "invalid_request".
func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.wire
	}
	return "unknown_error"
}

// Description is the default human readable text for the code.
func (c Code) Description() string {
	return codes[c].description
}

// StatusCode is the HTTP status used when the error is returned in a response body.
func (c Code) StatusCode() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusBadRequest
}

// ParseCode maps a wire code back to its Code.
func ParseCode(s string) (Code, bool) {
	c, ok := byWire[s]
	return c, ok
}
