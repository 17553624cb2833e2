package oserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	_ GrantSaver            = (*RedisGrantStore)(nil)
	_ CodeExchanger         = (*RedisGrantStore)(nil)
	_ BearerTokenSaver      = (*RedisGrantStore)(nil)
	_ BearerTokenValidator  = (*RedisGrantStore)(nil)
	_ RefreshTokenValidator = (*RedisGrantStore)(nil)
	_ TokenRevoker          = (*RedisGrantStore)(nil)
)

const (
	keyTypeCode    = "code"
	keyTypeAccess  = "access"
	keyTypeRefresh = "refresh"
)

// RedisGrantStore keeps short-lived grants in Redis: authorization codes,
// access tokens and their refresh tokens. Keys expire with the grant.
type RedisGrantStore struct {
	client    redis.Cmdable
	keyPrefix string
	opts      options
}

// storedGrant is the JSON value kept under every key.
type storedGrant struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id,omitempty"`
	RedirectURI         string    `json:"redirect_uri,omitempty"`
	State               string    `json:"state,omitempty"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	Scopes              []string  `json:"scopes"`
	AccessToken         string    `json:"access_token,omitempty"`
	RefreshToken        string    `json:"refresh_token,omitempty"`
	ExpiresAt           time.Time `json:"expires_at,omitzero"`
}

// NewRedisGrantStore uses keyPrefix for every key, e.g. "oauth2:".
func NewRedisGrantStore(client redis.Cmdable, keyPrefix string, opts ...Option) *RedisGrantStore {
	return &RedisGrantStore{client: client, keyPrefix: keyPrefix, opts: newOptions(opts)}
}

func (s *RedisGrantStore) key(keyType, id string) string {
	return s.keyPrefix + keyType + ":" + id
}

func (s *RedisGrantStore) put(ctx context.Context, keyType, id string, g storedGrant, ttl time.Duration) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}
	return s.client.Set(ctx, s.key(keyType, id), data, ttl).Err()
}

func (s *RedisGrantStore) get(ctx context.Context, keyType, id string, del bool) (*storedGrant, error) {
	var cmd *redis.StringCmd
	if del {
		cmd = s.client.GetDel(ctx, s.key(keyType, id))
	} else {
		cmd = s.client.Get(ctx, s.key(keyType, id))
	}
	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", keyType, err)
	}
	var g storedGrant
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", keyType, err)
	}
	return &g, nil
}

func (s *RedisGrantStore) SaveAuthorizationGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	ttl := s.opts.cfg.AuthorizationCodeTTL.Duration
	return s.put(ctx, keyTypeCode, grant.Get("code"), storedGrant{
		ID:                  uuid.NewString(),
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		RedirectURI:         req.RequestedRedirectURI(),
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Scopes:              req.Scopes,
		ExpiresAt:           s.opts.now().Add(ttl),
	}, ttl)
}

func (s *RedisGrantStore) SaveImplicitGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	ttl := s.opts.cfg.ImplicitExpiresIn.Duration
	token := grant.Get("access_token")
	return s.put(ctx, keyTypeAccess, token, storedGrant{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		UserID:      req.UserID,
		Scopes:      req.Scopes,
		AccessToken: token,
		ExpiresAt:   s.opts.now().Add(ttl),
	}, ttl)
}

// ValidateAuthorizationCode reads and deletes the code in one GETDEL, so a
// second exchange finds nothing.
func (s *RedisGrantStore) ValidateAuthorizationCode(ctx context.Context, clientID, code, redirectURI string) (*CodeGrant, error) {
	g, err := s.get(ctx, keyTypeCode, code, true)
	if err != nil || g == nil {
		return nil, err
	}
	if g.ClientID != clientID {
		s.opts.logger.Warn("authorization code presented by another client",
			"client_id", clientID, "owner", g.ClientID)
		return nil, nil
	}
	return &CodeGrant{
		ClientID:            g.ClientID,
		UserID:              g.UserID,
		RedirectURI:         g.RedirectURI,
		Scopes:              g.Scopes,
		State:               g.State,
		CodeChallenge:       g.CodeChallenge,
		CodeChallengeMethod: g.CodeChallengeMethod,
	}, nil
}

func (s *RedisGrantStore) SaveBearerToken(ctx context.Context, token *BearerToken) error {
	g := storedGrant{
		ID:           uuid.NewString(),
		ClientID:     token.ClientID,
		UserID:       token.UserID,
		Scopes:       token.Scopes,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	}
	ttl := time.Duration(token.ExpiresIn) * time.Second
	if err := s.put(ctx, keyTypeAccess, token.AccessToken, g, ttl); err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return nil
	}
	refresh := g
	refresh.ExpiresAt = time.Time{}
	return s.put(ctx, keyTypeRefresh, token.RefreshToken, refresh, 0)
}

func (s *RedisGrantStore) ValidateBearerToken(ctx context.Context, token string) (*AccessGrant, error) {
	g, err := s.get(ctx, keyTypeAccess, token, false)
	if err != nil || g == nil {
		return nil, err
	}
	return &AccessGrant{
		ClientID:  g.ClientID,
		UserID:    g.UserID,
		Scopes:    g.Scopes,
		ExpiresAt: g.ExpiresAt,
	}, nil
}

func (s *RedisGrantStore) ValidateRefreshToken(ctx context.Context, clientID, refreshToken string) (*AccessGrant, error) {
	g, err := s.get(ctx, keyTypeRefresh, refreshToken, false)
	if err != nil || g == nil || g.ClientID != clientID {
		return nil, err
	}
	return &AccessGrant{
		ClientID: g.ClientID,
		UserID:   g.UserID,
		Scopes:   g.Scopes,
	}, nil
}

// RevokeToken removes token and the other half of its pair. Tokens of other
// clients are left alone.
func (s *RedisGrantStore) RevokeToken(ctx context.Context, clientID, token, tokenTypeHint string) error {
	order := []string{keyTypeAccess, keyTypeRefresh}
	if tokenTypeHint == "refresh_token" {
		order = []string{keyTypeRefresh, keyTypeAccess}
	}
	for _, keyType := range order {
		g, err := s.get(ctx, keyType, token, false)
		if err != nil {
			return err
		}
		if g == nil {
			continue
		}
		if g.ClientID != clientID {
			return nil
		}
		keys := []string{s.key(keyType, token)}
		if g.AccessToken != "" && g.AccessToken != token {
			keys = append(keys, s.key(keyTypeAccess, g.AccessToken))
		}
		if g.RefreshToken != "" && g.RefreshToken != token {
			keys = append(keys, s.key(keyTypeRefresh, g.RefreshToken))
		}
		return s.client.Del(ctx, keys...).Err()
	}
	return nil
}
