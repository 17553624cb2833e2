package oclient

import (
	"time"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// TokenPair is the persisted token state of a client for one user and provider.
type TokenPair struct {
	TokenType    string
	AccessToken  string
	RefreshToken string
	Scope        []string
	ExpiresAt    time.Time
	IssuedAt     time.Time
}

// TokenPair snapshots the client's current token state.
func (c *Client) TokenPair() TokenPair {
	return TokenPair{
		TokenType:    c.TokenType,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Scope:        c.Scope,
		ExpiresAt:    c.ExpiresAt,
		IssuedAt:     c.IssuedAt,
	}
}

// ApplyTokenPair restores token state previously saved with TokenPair.
func (c *Client) ApplyTokenPair(p TokenPair) {
	if p.TokenType != "" {
		c.TokenType = p.TokenType
	}
	c.AccessToken = p.AccessToken
	c.RefreshToken = p.RefreshToken
	c.Scope = scope.New(p.Scope...)
	c.ExpiresAt = p.ExpiresAt
	c.IssuedAt = p.IssuedAt
	c.ExpiresIn = 0
	if !p.ExpiresAt.IsZero() && !p.IssuedAt.IsZero() {
		c.ExpiresIn = int64(p.ExpiresAt.Sub(p.IssuedAt) / time.Second)
	}
}
