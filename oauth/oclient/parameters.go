package oclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
	"github.com/Seann-Moser/oauth2core/utils"
)

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"

	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// Response holds the fields recognized in an authorization or token response.
// Fields not present in the response are left at their zero value; use Has to tell
// them apart from present-but-empty ones.
type Response struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresIn    int64
	Scope        scope.Scope
	Code         string
	State        string

	// ScopeChanged is set when the server granted a different scope than requested.
	ScopeChanged bool

	// Extra holds parameters that are not part of the fields above.
	Extra map[string]string

	present map[string]struct{}
}

// Has reports whether the response carried the named parameter.
func (r *Response) Has(field string) bool {
	_, ok := r.present[field]
	return ok
}

func (r *Response) set(key, value string) error {
	if r.present == nil {
		r.present = make(map[string]struct{})
	}
	r.present[key] = struct{}{}
	switch key {
	case "access_token":
		r.AccessToken = value
	case "token_type":
		r.TokenType = value
	case "refresh_token":
		r.RefreshToken = value
	case "expires_in":
		n, err := parseSeconds(value)
		if err != nil {
			return fmt.Errorf("%w: expires_in %q is not an integer", ErrInvalidResponse, value)
		}
		r.ExpiresIn = n
	case "scope":
		r.Scope = scope.Parse(value)
	case "code":
		r.Code = value
	case "state":
		r.State = value
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[key] = value
	}
	return nil
}

// parseSeconds also takes integral floats such as 3600.0, which some servers send.
func parseSeconds(value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(value, 64)
	if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return 0, err
	}
	return int64(f), nil
}

func responseFromValues(v url.Values) (*Response, error) {
	r := &Response{}
	for k := range v {
		if err := r.set(k, v.Get(k)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// compare the granted scope against the one asked for
func (r *Response) checkScope(requested scope.Scope) {
	if requested.Empty() {
		return
	}
	if !r.Has("scope") {
		r.Scope = requested
		return
	}
	r.ScopeChanged = !r.Scope.Equal(requested)
}

func prepareGrantURI(uri, clientID, responseType, redirectURI string, sc scope.Scope, state string, extra utils.Params) (string, error) {
	if clientID == "" {
		return "", fmt.Errorf("%w: client_id", ErrMissingParameter)
	}
	if !utils.IsAbsoluteURI(uri) {
		return "", fmt.Errorf("%w: authorization endpoint %q must be absolute and carry no fragment", ErrInvalidURI, uri)
	}
	if redirectURI != "" && !utils.IsAbsoluteURI(redirectURI) {
		return "", fmt.Errorf("%w: redirect_uri %q must be absolute and carry no fragment", ErrInvalidURI, redirectURI)
	}

	params := utils.Params{
		{Key: "response_type", Value: responseType},
		{Key: "client_id", Value: clientID},
	}
	if redirectURI != "" {
		params = append(params, utils.Param{Key: "redirect_uri", Value: redirectURI})
	}
	if !sc.Empty() {
		params = append(params, utils.Param{Key: "scope", Value: sc.String()})
	}
	if state != "" {
		params = append(params, utils.Param{Key: "state", Value: state})
	}
	params = append(params, extra...)

	existing, err := utils.QueryParams(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		_, dup := seen[p.Key]
		if dup || existing.Has(p.Key) {
			return "", fmt.Errorf("%w: %s", utils.ErrDuplicateParameter, p.Key)
		}
		seen[p.Key] = struct{}{}
	}
	return utils.AddParamsToURI(uri, params, false)
}

// grant_type first, then grant fields, scope and extras
func prepareTokenRequest(body, grantType string, fields utils.Params, sc scope.Scope, extra utils.Params) string {
	params := utils.Params{{Key: "grant_type", Value: grantType}}
	params = append(params, fields...)
	if !sc.Empty() {
		params = append(params, utils.Param{Key: "scope", Value: sc.String()})
	}
	params = append(params, extra...)
	return utils.AddParamsToBody(body, params)
}

func checkState(got, want string) error {
	if want != "" && got != want {
		return fmt.Errorf("%w: state mismatch", ErrInvalidResponse)
	}
	return nil
}

func parseAuthorizationCodeResponse(uri, state string) (*Response, error) {
	q, err := utils.QueryParams(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := checkState(q.Get("state"), state); err != nil {
		return nil, err
	}
	if oe, ok := oerror.FromParams(q); ok {
		return nil, oe
	}
	resp, err := responseFromValues(q)
	if err != nil {
		return nil, err
	}
	if resp.Code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidResponse)
	}
	return resp, nil
}

func parseImplicitResponse(uri, state string, sc scope.Scope) (*Response, error) {
	f, err := utils.FragmentParams(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := checkState(f.Get("state"), state); err != nil {
		return nil, err
	}
	if oe, ok := oerror.FromParams(f); ok {
		return nil, oe
	}
	resp, err := responseFromValues(f)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access_token in fragment", ErrInvalidResponse)
	}
	resp.checkScope(sc)
	return resp, nil
}

func parseTokenResponse(body string, sc scope.Scope) (*Response, error) {
	dec := json.NewDecoder(bytes.NewBufferString(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrInvalidResponse)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidResponse)
	}

	v := make(url.Values, len(raw))
	for k, val := range raw {
		switch x := val.(type) {
		case string:
			v.Set(k, x)
		case json.Number:
			v.Set(k, x.String())
		case bool:
			v.Set(k, strconv.FormatBool(x))
		case nil:
		default:
			// nested values are not part of the token response
			b, err := json.Marshal(x)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
			v.Set(k, string(b))
		}
	}
	if oe, ok := oerror.FromParams(v); ok {
		return nil, oe
	}
	resp, err := responseFromValues(v)
	if err != nil {
		return nil, err
	}
	resp.checkScope(sc)
	return resp, nil
}
