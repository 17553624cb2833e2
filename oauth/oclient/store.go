package oclient

import (
	"context"
	"errors"
)

var ErrTokensNotFound = errors.New("tokens not found")

// TokenStore persists client token state between runs.
type TokenStore interface {
	// StoreTokens persists a user's token pair for a provider, replacing any previous one.
	StoreTokens(ctx context.Context, accountID, userID, provider string, tokens TokenPair) error

	// GetTokens retrieves the last-stored tokens for a user+provider.
	GetTokens(ctx context.Context, accountID, userID, provider string) (TokenPair, error)

	// DeleteTokens deletes any stored token pair (e.g. when unlinking).
	DeleteTokens(ctx context.Context, accountID, userID, provider string) error
}

// Save stores the client's token state.
func Save(ctx context.Context, s TokenStore, c GrantClient, accountID, userID, provider string) error {
	return s.StoreTokens(ctx, accountID, userID, provider, c.Base().TokenPair())
}

// Load restores the client's token state.
func Load(ctx context.Context, s TokenStore, c GrantClient, accountID, userID, provider string) error {
	p, err := s.GetTokens(ctx, accountID, userID, provider)
	if err != nil {
		return err
	}
	c.Base().ApplyTokenPair(p)
	return nil
}
