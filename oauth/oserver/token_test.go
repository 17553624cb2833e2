package oserver

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Seann-Moser/oauth2core/oauth/oclient"
	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/oauth/pkce"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
	"github.com/Seann-Moser/oauth2core/utils"
)

const tokenURL = "https://server.example/token"

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testClock() Option {
	return WithClock(func() time.Time { return testNow })
}

func basicAuth(id, secret string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(id+":"+secret)))
	return h
}

func formHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", string(ContentTypeForm))
	return h
}

func TestTokenEndpoint_AuthorizationCodeFlow(t *testing.T) {
	codes := map[string]*CodeGrant{}
	var issued *BearerToken

	v := newHostMock()
	v.SaveAuthorizationGrantFunc = func(_ context.Context, req *AuthorizationRequest, grant Grant) error {
		codes[grant.Get("code")] = &CodeGrant{
			ClientID:            req.ClientID,
			UserID:              req.UserID,
			RedirectURI:         req.RequestedRedirectURI(),
			Scopes:              req.Scopes,
			State:               req.State,
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
		}
		return nil
	}
	v.ValidateAuthorizationCodeFunc = func(_ context.Context, clientID, code, _ string) (*CodeGrant, error) {
		g, ok := codes[code]
		if !ok || g.ClientID != clientID {
			return nil, nil
		}
		delete(codes, code)
		return g, nil
	}
	v.AuthenticateClientFunc = func(_ context.Context, clientID, secret string) (bool, error) {
		return clientID == "abc" && secret == "", nil
	}
	v.SaveBearerTokenFunc = func(_ context.Context, tok *BearerToken) error {
		issued = tok
		return nil
	}

	n := 0
	gen := WithTokenGenerator(TokenGeneratorFunc(func(context.Context) (string, error) {
		n++
		return []string{"code-1", "access-1", "refresh-1"}[n-1], nil
	}))
	srv := NewServer(v, gen, testClock())

	client := oclient.NewWebApplicationClient("abc")
	if _, err := client.EnablePKCE(pkce.MethodS256); err != nil {
		t.Fatalf("EnablePKCE returned error: %v", err)
	}
	uri, err := client.PrepareRequestURI(authorizeURL, callbackURL, scope.New("read", "write"), "xyz")
	if err != nil {
		t.Fatalf("PrepareRequestURI returned error: %v", err)
	}

	req, err := srv.ParseAuthorizationParameters(uri)
	if err != nil {
		t.Fatalf("ParseAuthorizationParameters returned error: %v", err)
	}
	if err := srv.ValidateAuthorizationParameters(context.Background(), req); err != nil {
		t.Fatalf("ValidateAuthorizationParameters returned error: %v", err)
	}
	req.UserID = "user-1"
	redirect, err := srv.CreateAuthorizationResponse(context.Background(), req, req.Scopes)
	if err != nil {
		t.Fatalf("CreateAuthorizationResponse returned error: %v", err)
	}
	if _, err := client.ParseAuthorizationResponse(redirect, "xyz"); err != nil {
		t.Fatalf("ParseAuthorizationResponse returned error: %v", err)
	}

	body, err := client.PrepareRequestBody("", "", callbackURL)
	if err != nil {
		t.Fatalf("PrepareRequestBody returned error: %v", err)
	}
	resp := srv.CreateTokenResponse(context.Background(), tokenURL, body, formHeaders())
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Status, resp.Body)
	}
	if got := resp.Headers.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := resp.Headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	parsed, err := client.ParseTokenResponse(string(resp.Body), scope.New("read", "write"))
	if err != nil {
		t.Fatalf("ParseTokenResponse returned error: %v", err)
	}
	if parsed.AccessToken != "access-1" || parsed.RefreshToken != "refresh-1" || parsed.ExpiresIn != 3600 {
		t.Errorf("token response %+v", parsed)
	}
	if client.AccessToken != "access-1" {
		t.Errorf("client access token = %q", client.AccessToken)
	}

	want := &BearerToken{
		AccessToken:  "access-1",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		ExpiresIn:    3600,
		ExpiresAt:    testNow.Add(time.Hour),
		Scopes:       scope.New("read", "write"),
		ClientID:     "abc",
		UserID:       "user-1",
		GrantType:    GrantTypeAuthorizationCode,
	}
	if diff := cmp.Diff(want, issued); diff != "" {
		t.Errorf("saved token mismatch (-want +got):\n%s", diff)
	}

	// a code works once
	resp = srv.CreateTokenResponse(context.Background(), tokenURL, body, formHeaders())
	assertTokenError(t, resp, oerror.InvalidGrant)
}

func assertTokenError(t *testing.T, resp *Response, want oerror.Code) {
	t.Helper()
	if resp.Status != want.StatusCode() {
		t.Errorf("status = %d, want %d", resp.Status, want.StatusCode())
	}
	_, err := oclient.NewClient("x").ParseTokenResponse(string(resp.Body), nil)
	var oe *oerror.Error
	if !errors.As(err, &oe) {
		t.Fatalf("body %s is not an error response", resp.Body)
	}
	if oe.Code != want {
		t.Errorf("error = %s, want %s (%s)", oe.Code, want, oe.Description)
	}
}

func TestTokenEndpoint_AuthorizationCodeChecks(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge, _ := pkce.Challenge(pkce.MethodS256, verifier)

	tests := []struct {
		name  string
		grant *CodeGrant
		body  string
		want  oerror.Code
	}{
		{
			name: "missing code",
			body: "grant_type=authorization_code&client_id=abc",
			want: oerror.InvalidRequest,
		},
		{
			name: "unknown code",
			body: "grant_type=authorization_code&client_id=abc&code=nope",
			want: oerror.InvalidGrant,
		},
		{
			name:  "code of another client",
			grant: &CodeGrant{ClientID: "other", Scopes: scope.New("read")},
			body:  "grant_type=authorization_code&client_id=abc&code=c1",
			want:  oerror.InvalidGrant,
		},
		{
			name:  "redirect mismatch",
			grant: &CodeGrant{ClientID: "abc", RedirectURI: callbackURL, Scopes: scope.New("read")},
			body:  "grant_type=authorization_code&client_id=abc&code=c1&redirect_uri=https%3A%2F%2Fother.example%2Fr",
			want:  oerror.InvalidGrant,
		},
		{
			name:  "missing verifier",
			grant: &CodeGrant{ClientID: "abc", Scopes: scope.New("read"), CodeChallenge: challenge, CodeChallengeMethod: "S256"},
			body:  "grant_type=authorization_code&client_id=abc&code=c1",
			want:  oerror.InvalidGrant,
		},
		{
			name:  "wrong verifier",
			grant: &CodeGrant{ClientID: "abc", Scopes: scope.New("read"), CodeChallenge: challenge, CodeChallengeMethod: "S256"},
			body:  "grant_type=authorization_code&client_id=abc&code=c1&code_verifier=wrong",
			want:  oerror.InvalidGrant,
		},
		{
			name:  "verifier without challenge",
			grant: &CodeGrant{ClientID: "abc", Scopes: scope.New("read")},
			body:  "grant_type=authorization_code&client_id=abc&code=c1&code_verifier=" + verifier,
			want:  oerror.InvalidGrant,
		},
		{
			name:  "valid verifier",
			grant: &CodeGrant{ClientID: "abc", Scopes: scope.New("read"), CodeChallenge: challenge, CodeChallengeMethod: "S256"},
			body:  "grant_type=authorization_code&client_id=abc&code=c1&code_verifier=" + verifier,
		},
		{
			name:  "default redirect needs none",
			grant: &CodeGrant{ClientID: "abc", Scopes: scope.New("read")},
			body:  "grant_type=authorization_code&client_id=abc&code=c1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &MockValidator{
				ValidateAuthorizationCodeFunc: func(_ context.Context, _, code, _ string) (*CodeGrant, error) {
					if code != "c1" {
						return nil, nil
					}
					return tt.grant, nil
				},
			}
			resp := NewTokenEndpoint(v, fixedTokens("t")).CreateTokenResponse(context.Background(), tokenURL, tt.body, nil)
			if tt.want == 0 {
				if resp.Status != http.StatusOK {
					t.Fatalf("status = %d, body %s", resp.Status, resp.Body)
				}
				return
			}
			assertTokenError(t, resp, tt.want)
		})
	}
}

func TestTokenEndpoint_ClientAuthentication(t *testing.T) {
	v := &MockValidator{
		AuthenticateClientFunc: func(_ context.Context, id, secret string) (bool, error) {
			return id == "abc" && secret == "s3cret", nil
		},
		DefaultScopesFunc: func(context.Context, string) (scope.Scope, error) { return scope.New("read"), nil },
	}
	e := NewTokenEndpoint(v, fixedTokens("t"))
	ctx := context.Background()

	resp := e.CreateTokenResponse(ctx, tokenURL, "grant_type=client_credentials", basicAuth("abc", "s3cret"))
	if resp.Status != http.StatusOK {
		t.Fatalf("basic auth: status = %d, body %s", resp.Status, resp.Body)
	}

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=client_credentials&client_id=abc&client_secret=s3cret", nil)
	if resp.Status != http.StatusOK {
		t.Fatalf("body auth: status = %d, body %s", resp.Status, resp.Body)
	}

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=client_credentials", basicAuth("abc", "wrong"))
	assertTokenError(t, resp, oerror.InvalidClient)
	if got := resp.Headers.Get("WWW-Authenticate"); got != `Basic realm="oauth2core"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=client_credentials&client_id=abc&client_secret=wrong", nil)
	assertTokenError(t, resp, oerror.InvalidClient)
	if got := resp.Headers.Get("WWW-Authenticate"); got != "" {
		t.Errorf("WWW-Authenticate set without Basic: %q", got)
	}

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=client_credentials&client_secret=s3cret", basicAuth("abc", "s3cret"))
	assertTokenError(t, resp, oerror.InvalidRequest)

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=client_credentials", nil)
	assertTokenError(t, resp, oerror.InvalidClient)

	resp = e.CreateTokenResponse(ctx, tokenURL+"?client_secret=s3cret", "grant_type=client_credentials&client_id=abc", nil)
	assertTokenError(t, resp, oerror.InvalidRequest)
}

func TestTokenEndpoint_ClientCredentials(t *testing.T) {
	var issued *BearerToken
	v := newHostMock()
	v.SaveBearerTokenFunc = func(_ context.Context, tok *BearerToken) error {
		issued = tok
		return nil
	}
	e := NewTokenEndpoint(v, fixedTokens("t"), testClock())

	body, _ := oclient.NewClientCredentialsClient("abc").PrepareRequestBody("", scope.New("write"))
	resp := e.CreateTokenResponse(context.Background(), tokenURL, body+"&client_id=abc", nil)
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Status, resp.Body)
	}
	if want := `{"access_token":"t","token_type":"Bearer","expires_in":3600,"scope":"write"}`; string(resp.Body) != want {
		t.Errorf("body = %s, want %s", resp.Body, want)
	}
	if issued.RefreshToken != "" {
		t.Error("client_credentials issued a refresh token")
	}

	resp = e.CreateTokenResponse(context.Background(), tokenURL, "grant_type=client_credentials&client_id=abc&scope=admin", nil)
	assertTokenError(t, resp, oerror.InvalidScope)
}

func TestTokenEndpoint_RefreshToken(t *testing.T) {
	v := newHostMock()
	v.ValidateRefreshTokenFunc = func(_ context.Context, clientID, token string) (*AccessGrant, error) {
		if token != "r1" {
			return nil, nil
		}
		return &AccessGrant{ClientID: "abc", UserID: "u1", Scopes: scope.New("read", "write")}, nil
	}
	e := NewTokenEndpoint(v, fixedTokens("t"))
	ctx := context.Background()

	c := oclient.NewClient("abc", oclient.WithRefreshToken("r1"))
	body, err := c.PrepareRefreshBody("", "", scope.New("read"), utils.Param{Key: "client_id", Value: "abc"})
	if err != nil {
		t.Fatalf("PrepareRefreshBody returned error: %v", err)
	}
	resp := e.CreateTokenResponse(ctx, tokenURL, body, nil)
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Status, resp.Body)
	}
	parsed, err := c.ParseTokenResponse(string(resp.Body), scope.New("read"))
	if err != nil {
		t.Fatalf("ParseTokenResponse returned error: %v", err)
	}
	if parsed.ScopeChanged || parsed.RefreshToken != "t" {
		t.Errorf("refresh response %+v", parsed)
	}

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=refresh_token&client_id=abc&refresh_token=r1&scope=admin", nil)
	assertTokenError(t, resp, oerror.InvalidScope)

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=refresh_token&client_id=abc&refresh_token=r2", nil)
	assertTokenError(t, resp, oerror.InvalidGrant)

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=refresh_token&client_id=abc", nil)
	assertTokenError(t, resp, oerror.InvalidRequest)
}

func TestTokenEndpoint_Password(t *testing.T) {
	v := newHostMock()
	v.ValidateUserFunc = func(_ context.Context, _, username, password string) (bool, error) {
		return username == "alice" && password == "pw", nil
	}
	var issued *BearerToken
	v.SaveBearerTokenFunc = func(_ context.Context, tok *BearerToken) error {
		issued = tok
		return nil
	}
	e := NewTokenEndpoint(v, fixedTokens("t"))
	ctx := context.Background()

	body, _ := oclient.NewPasswordCredentialsClient("abc", "alice", "pw").PrepareRequestBody("", nil)
	resp := e.CreateTokenResponse(ctx, tokenURL, body+"&client_id=abc", nil)
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Status, resp.Body)
	}
	if issued.UserID != "alice" || !issued.Scopes.Equal(scope.New("read")) {
		t.Errorf("issued %+v", issued)
	}

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=password&client_id=abc&username=alice&password=bad", nil)
	assertTokenError(t, resp, oerror.InvalidGrant)

	resp = e.CreateTokenResponse(ctx, tokenURL, "grant_type=password&client_id=abc&username=alice", nil)
	assertTokenError(t, resp, oerror.InvalidRequest)
}

func TestTokenEndpoint_GrantTypeDispatch(t *testing.T) {
	full := NewTokenEndpoint(&MockValidator{})
	want := []GrantType{GrantTypeAuthorizationCode, GrantTypeRefreshToken, GrantTypeClientCredentials, GrantTypePassword}
	if diff := cmp.Diff(want, full.GrantTypes()); diff != "" {
		t.Errorf("GrantTypes mismatch (-want +got):\n%s", diff)
	}

	// only the TokenValidator methods are visible through narrow
	type narrow struct{ TokenValidator }
	e := NewTokenEndpoint(narrow{&MockValidator{}})
	if diff := cmp.Diff([]GrantType{GrantTypeClientCredentials}, e.GrantTypes()); diff != "" {
		t.Errorf("GrantTypes mismatch (-want +got):\n%s", diff)
	}
	for _, gt := range []string{"authorization_code", "refresh_token", "password", "urn:example:custom"} {
		resp := e.CreateTokenResponse(context.Background(), tokenURL, "grant_type="+gt+"&client_id=abc", nil)
		assertTokenError(t, resp, oerror.UnsupportedGrantType)
	}

	resp := e.CreateTokenResponse(context.Background(), tokenURL, "client_id=abc", nil)
	assertTokenError(t, resp, oerror.InvalidRequest)
}

func TestTokenEndpoint_CallbackFailure(t *testing.T) {
	v := newHostMock()
	v.SaveBearerTokenFunc = func(context.Context, *BearerToken) error { return errors.New("db down") }
	resp := NewTokenEndpoint(v).CreateTokenResponse(context.Background(), tokenURL, "grant_type=client_credentials&client_id=abc", nil)
	assertTokenError(t, resp, oerror.ServerError)
}
