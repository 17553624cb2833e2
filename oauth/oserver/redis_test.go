package oserver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

func newTestRedisStore(t *testing.T) (*RedisGrantStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGrantStore(client, "oauth2:", testClock()), mr
}

func TestRedisGrantStore_AuthorizationCode(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	req := &AuthorizationRequest{
		ClientID:            "abc",
		RedirectURI:         callbackURL,
		Scopes:              scope.New("read"),
		State:               "xyz",
		CodeChallenge:       "ch",
		CodeChallengeMethod: "S256",
		UserID:              "u1",
	}
	if err := s.SaveAuthorizationGrant(ctx, req, Grant{{Key: "code", Value: "c1"}}); err != nil {
		t.Fatalf("SaveAuthorizationGrant returned error: %v", err)
	}
	if ttl := mr.TTL("oauth2:code:c1"); ttl != DefaultConfig().AuthorizationCodeTTL.Duration {
		t.Errorf("code ttl = %s", ttl)
	}

	// another client cannot use the code, and burns it trying
	if g, err := s.ValidateAuthorizationCode(ctx, "evil", "c1", ""); g != nil || err != nil {
		t.Fatalf("other client got %+v, %v", g, err)
	}
	if mr.Exists("oauth2:code:c1") {
		t.Error("code survived a foreign exchange")
	}

	if err := s.SaveAuthorizationGrant(ctx, req, Grant{{Key: "code", Value: "c2"}}); err != nil {
		t.Fatalf("SaveAuthorizationGrant returned error: %v", err)
	}
	got, err := s.ValidateAuthorizationCode(ctx, "abc", "c2", "")
	if err != nil {
		t.Fatalf("ValidateAuthorizationCode returned error: %v", err)
	}
	want := &CodeGrant{
		ClientID:            "abc",
		UserID:              "u1",
		RedirectURI:         callbackURL,
		Scopes:              scope.New("read"),
		State:               "xyz",
		CodeChallenge:       "ch",
		CodeChallengeMethod: "S256",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("grant mismatch (-want +got):\n%s", diff)
	}

	if g, _ := s.ValidateAuthorizationCode(ctx, "abc", "c2", ""); g != nil {
		t.Error("code exchanged twice")
	}
}

func TestRedisGrantStore_CodeExpires(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	req := &AuthorizationRequest{ClientID: "abc", Scopes: scope.New("read")}
	if err := s.SaveAuthorizationGrant(ctx, req, Grant{{Key: "code", Value: "c1"}}); err != nil {
		t.Fatalf("SaveAuthorizationGrant returned error: %v", err)
	}
	mr.FastForward(DefaultConfig().AuthorizationCodeTTL.Duration + time.Second)

	if g, err := s.ValidateAuthorizationCode(ctx, "abc", "c1", ""); g != nil || err != nil {
		t.Errorf("expired code = %+v, %v", g, err)
	}
}

func TestRedisGrantStore_BearerTokens(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	token := &BearerToken{
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresIn:    3600,
		ExpiresAt:    testNow.Add(time.Hour),
		Scopes:       scope.New("read", "write"),
		ClientID:     "abc",
		UserID:       "u1",
	}
	if err := s.SaveBearerToken(ctx, token); err != nil {
		t.Fatalf("SaveBearerToken returned error: %v", err)
	}
	if ttl := mr.TTL("oauth2:access:a1"); ttl != time.Hour {
		t.Errorf("access ttl = %s", ttl)
	}
	if ttl := mr.TTL("oauth2:refresh:r1"); ttl != 0 {
		t.Errorf("refresh ttl = %s, want none", ttl)
	}

	access, err := s.ValidateBearerToken(ctx, "a1")
	if err != nil {
		t.Fatalf("ValidateBearerToken returned error: %v", err)
	}
	wantAccess := &AccessGrant{ClientID: "abc", UserID: "u1", Scopes: scope.New("read", "write"), ExpiresAt: testNow.Add(time.Hour)}
	if diff := cmp.Diff(wantAccess, access); diff != "" {
		t.Errorf("access grant mismatch (-want +got):\n%s", diff)
	}

	refresh, err := s.ValidateRefreshToken(ctx, "abc", "r1")
	if err != nil {
		t.Fatalf("ValidateRefreshToken returned error: %v", err)
	}
	if refresh == nil || !refresh.ExpiresAt.IsZero() || refresh.UserID != "u1" {
		t.Errorf("refresh grant = %+v", refresh)
	}
	if g, _ := s.ValidateRefreshToken(ctx, "evil", "r1"); g != nil {
		t.Error("refresh token usable by another client")
	}

	mr.FastForward(time.Hour)
	if g, _ := s.ValidateBearerToken(ctx, "a1"); g != nil {
		t.Error("access token outlived its ttl")
	}
	if g, _ := s.ValidateRefreshToken(ctx, "abc", "r1"); g == nil {
		t.Error("refresh token expired with its access token")
	}
}

func TestRedisGrantStore_ImplicitGrant(t *testing.T) {
	s, mr := newTestRedisStore(t)
	req := &AuthorizationRequest{ClientID: "abc", Scopes: scope.New("read"), UserID: "u1"}
	if err := s.SaveImplicitGrant(context.Background(), req, Grant{{Key: "access_token", Value: "i1"}}); err != nil {
		t.Fatalf("SaveImplicitGrant returned error: %v", err)
	}
	if ttl := mr.TTL("oauth2:access:i1"); ttl != DefaultConfig().ImplicitExpiresIn.Duration {
		t.Errorf("implicit ttl = %s", ttl)
	}
	g, err := s.ValidateBearerToken(context.Background(), "i1")
	if err != nil || g == nil || g.UserID != "u1" {
		t.Errorf("ValidateBearerToken = %+v, %v", g, err)
	}
}

func TestRedisGrantStore_RevokeToken(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		token    string
		hint     string
		revoked  bool
	}{
		{name: "access token", clientID: "abc", token: "a1", revoked: true},
		{name: "refresh token", clientID: "abc", token: "r1", hint: "refresh_token", revoked: true},
		{name: "refresh token with wrong hint", clientID: "abc", token: "r1", hint: "access_token", revoked: true},
		{name: "other client", clientID: "evil", token: "a1"},
		{name: "unknown token", clientID: "abc", token: "zzz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newTestRedisStore(t)
			ctx := context.Background()
			err := s.SaveBearerToken(ctx, &BearerToken{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 60, ClientID: "abc"})
			if err != nil {
				t.Fatalf("SaveBearerToken returned error: %v", err)
			}

			if err := s.RevokeToken(ctx, tt.clientID, tt.token, tt.hint); err != nil {
				t.Fatalf("RevokeToken returned error: %v", err)
			}
			for _, key := range []string{"oauth2:access:a1", "oauth2:refresh:r1"} {
				if mr.Exists(key) == tt.revoked {
					t.Errorf("%s exists = %v after revoke", key, !tt.revoked)
				}
			}
		})
	}
}
