package oclient

import (
	"time"

	"golang.org/x/oauth2"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// Token converts the client's token state into an x/oauth2 token, so it can
// be handed to libraries built on that package.
func (c *Client) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
		ExpiresIn:    c.ExpiresIn,
	}
	if !c.Scope.Empty() {
		t = t.WithExtra(map[string]any{"scope": c.Scope.String()})
	}
	return t
}

// SetToken loads token state from an x/oauth2 token.
func (c *Client) SetToken(t *oauth2.Token) {
	if t == nil {
		return
	}
	c.AccessToken = t.AccessToken
	c.RefreshToken = t.RefreshToken
	if t.TokenType != "" {
		c.TokenType = t.Type()
	}
	c.ExpiresAt = t.Expiry
	c.ExpiresIn = t.ExpiresIn
	if c.ExpiresIn == 0 && !t.Expiry.IsZero() {
		c.ExpiresIn = int64(time.Until(t.Expiry) / time.Second)
	}
	if s, ok := t.Extra("scope").(string); ok {
		c.Scope = scope.Parse(s)
	}
}

// Valid reports whether an access token is held and has not expired.
func (c *Client) Valid() bool {
	return c.Token().Valid()
}
