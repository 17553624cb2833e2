package oserver

import (
	"context"
	"net/http"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

type AuthorizationServer interface {
	ParseAuthorizationParameters(uri string) (*AuthorizationRequest, error)
	ValidateAuthorizationParameters(ctx context.Context, req *AuthorizationRequest) error
	CreateAuthorizationResponse(ctx context.Context, req *AuthorizationRequest, authorized scope.Scope) (string, error)
	ErrorResponse(ctx context.Context, req *AuthorizationRequest, err error) (string, error)
}

type TokenServer interface {
	CreateTokenResponse(ctx context.Context, uri, body string, headers http.Header) *Response
}

type ResourceServer interface {
	VerifyRequest(ctx context.Context, uri, method, body string, headers http.Header, required scope.Scope) (*AccessGrant, error)
	Challenge(err error) string
}

type RevocationServer interface {
	CreateRevocationResponse(ctx context.Context, uri, body string, headers http.Header) *Response
}

type OServer interface {
	AuthorizationServer
	TokenServer
	ResourceServer
	RevocationServer
}

var _ OServer = (*Server)(nil)

// Server bundles every endpoint over one Validator.
type Server struct {
	*AuthorizationEndpoint
	*TokenEndpoint
	*ResourceEndpoint
	*RevocationEndpoint
}

func NewServer(v Validator, opts ...Option) *Server {
	return &Server{
		AuthorizationEndpoint: NewAuthorizationEndpoint(v, opts...),
		TokenEndpoint:         NewTokenEndpoint(v, opts...),
		ResourceEndpoint:      NewResourceEndpoint(v, opts...),
		RevocationEndpoint:    NewRevocationEndpoint(v, opts...),
	}
}
