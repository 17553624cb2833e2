package oclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
	"github.com/Seann-Moser/oauth2core/oauth/tokens"
	"github.com/Seann-Moser/oauth2core/utils"
)

var (
	ErrMissingToken         = errors.New("missing access token")
	ErrUnsupportedTokenType = errors.New("unsupported token type")
	ErrInvalidPlacement     = errors.New("invalid token placement")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrMissingParameter     = errors.New("missing required parameter")
	ErrInvalidURI           = errors.New("invalid uri")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Placement is where a bearer token goes on a resource request.
type Placement string

const (
	PlacementAuthHeader Placement = "auth_header"
	PlacementQuery      Placement = "query"
	PlacementBody       Placement = "body"
)

func (p Placement) valid() bool {
	switch p {
	case PlacementAuthHeader, PlacementQuery, PlacementBody:
		return true
	}
	return false
}

// Request is an outgoing resource request.
type Request struct {
	URI     string
	Method  string
	Body    string
	Headers http.Header
}

// TokenAdder attaches the client's access token to req using one token scheme.
type TokenAdder func(c *Client, req Request, placement Placement) (Request, error)

var defaultTokenTypes = map[string]TokenAdder{
	strings.ToLower(tokens.TypeBearer): addBearerToken,
	strings.ToLower(tokens.TypeMAC):    addMACToken,
}

// Client holds the state shared by every grant workflow. It is mutated in place
// whenever a response is parsed and is not safe for concurrent use.
type Client struct {
	ClientID string

	TokenType    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	ExpiresAt    time.Time
	IssuedAt     time.Time
	Scope        scope.Scope
	Code         string

	DefaultTokenPlacement Placement

	MACKey       string
	MACExt       string
	MACAlgorithm string
	MACSigner    tokens.MACSigner

	Logger *slog.Logger

	tokenTypes map[string]TokenAdder
	now        func() time.Time
}

type Option func(*Client)

func WithTokenType(tokenType string) Option {
	return func(c *Client) { c.TokenType = tokenType }
}

func WithAccessToken(token string) Option {
	return func(c *Client) { c.AccessToken = token }
}

func WithRefreshToken(token string) Option {
	return func(c *Client) { c.RefreshToken = token }
}

func WithPlacement(p Placement) Option {
	return func(c *Client) { c.DefaultTokenPlacement = p }
}

// WithMAC configures the key material used by MAC tokens.
func WithMAC(key, algorithm string, signer tokens.MACSigner) Option {
	return func(c *Client) {
		c.MACKey = key
		c.MACAlgorithm = algorithm
		c.MACSigner = signer
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.Logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient returns a base client. Most callers want one of the workflow clients.
func NewClient(clientID string, opts ...Option) *Client {
	c := &Client{}
	c.init(clientID, opts)
	return c
}

func (c *Client) init(clientID string, opts []Option) {
	c.ClientID = clientID
	c.TokenType = tokens.TypeBearer
	c.DefaultTokenPlacement = PlacementAuthHeader
	c.MACAlgorithm = tokens.HMACSHA1
	for _, o := range opts {
		o(c)
	}
}

// Base returns the shared client state.
func (c *Client) Base() *Client { return c }

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// RegisterTokenType adds or replaces a token scheme. Names are case-insensitive.
func (c *Client) RegisterTokenType(name string, adder TokenAdder) {
	if c.tokenTypes == nil {
		c.tokenTypes = make(map[string]TokenAdder)
	}
	c.tokenTypes[strings.ToLower(name)] = adder
}

func (c *Client) tokenAdder(name string) (TokenAdder, bool) {
	key := strings.ToLower(name)
	if a, ok := c.tokenTypes[key]; ok {
		return a, true
	}
	a, ok := defaultTokenTypes[key]
	return a, ok
}

// AddToken attaches the access token to req. An empty placement falls back to
// DefaultTokenPlacement. Exactly one of the uri, headers or body changes.
func (c *Client) AddToken(req Request, placement Placement) (Request, error) {
	if c.AccessToken == "" {
		return req, ErrMissingToken
	}
	adder, ok := c.tokenAdder(c.TokenType)
	if !ok {
		return req, fmt.Errorf("%w: %q", ErrUnsupportedTokenType, c.TokenType)
	}
	if placement == "" {
		placement = c.DefaultTokenPlacement
	}
	return adder(c, req, placement)
}

func addBearerToken(c *Client, req Request, placement Placement) (Request, error) {
	switch placement {
	case PlacementAuthHeader:
		req.Headers = tokens.PrepareBearerHeaders(c.AccessToken, req.Headers)
	case PlacementQuery:
		uri, err := tokens.PrepareBearerURI(c.AccessToken, req.URI)
		if err != nil {
			return req, err
		}
		req.URI = uri
	case PlacementBody:
		req.Body = tokens.PrepareBearerBody(c.AccessToken, req.Body)
	default:
		return req, fmt.Errorf("%w: %q", ErrInvalidPlacement, placement)
	}
	return req, nil
}

// MAC tokens always go in the Authorization header.
func addMACToken(c *Client, req Request, placement Placement) (Request, error) {
	if !placement.valid() {
		return req, fmt.Errorf("%w: %q", ErrInvalidPlacement, placement)
	}
	headers, err := tokens.PrepareMACHeader(tokens.MACRequest{
		Token:     c.AccessToken,
		Key:       c.MACKey,
		Algorithm: c.MACAlgorithm,
		Method:    req.Method,
		URI:       req.URI,
		Body:      req.Body,
		Ext:       c.MACExt,
		Headers:   req.Headers,
		IssuedAt:  c.IssuedAt,
		Now:       c.clock(),
	}, c.MACSigner)
	if err != nil {
		return req, err
	}
	req.Headers = headers
	return req, nil
}

// PrepareRefreshBody builds a refresh_token request body. An empty refreshToken
// uses the stored one.
func (c *Client) PrepareRefreshBody(body, refreshToken string, sc scope.Scope, extra ...utils.Param) (string, error) {
	if refreshToken == "" {
		refreshToken = c.RefreshToken
	}
	if refreshToken == "" {
		return "", fmt.Errorf("%w: refresh_token", ErrMissingParameter)
	}
	return prepareTokenRequest(body, GrantTypeRefreshToken, utils.Params{{Key: "refresh_token", Value: refreshToken}}, sc, extra), nil
}

// ParseTokenResponse reads a JSON token response and updates the client.
func (c *Client) ParseTokenResponse(body string, sc scope.Scope) (*Response, error) {
	resp, err := parseTokenResponse(body, sc)
	if err != nil {
		return nil, err
	}
	c.noteScopeChange(resp, sc)
	c.populateAttributes(resp)
	return resp, nil
}

// populateAttributes overwrites every recognized field present in resp.
func (c *Client) populateAttributes(resp *Response) {
	now := c.clock()
	if resp.Has("access_token") {
		c.AccessToken = resp.AccessToken
		c.IssuedAt = now
	}
	if resp.Has("refresh_token") {
		c.RefreshToken = resp.RefreshToken
	}
	if resp.Has("token_type") {
		c.TokenType = resp.TokenType
	}
	if resp.Has("expires_in") {
		c.ExpiresIn = resp.ExpiresIn
		c.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if resp.Has("scope") {
		c.Scope = resp.Scope
	}
	if resp.Has("code") {
		c.Code = resp.Code
	}
	if resp.Has("mac_key") {
		c.MACKey = resp.Extra["mac_key"]
	}
	if resp.Has("mac_algorithm") {
		c.MACAlgorithm = resp.Extra["mac_algorithm"]
	}
}

func (c *Client) noteScopeChange(resp *Response, requested scope.Scope) {
	if resp.ScopeChanged {
		c.logger().Debug("granted scope differs from requested scope",
			"client_id", c.ClientID, "requested", requested.String(), "granted", resp.Scope.String())
	}
}
