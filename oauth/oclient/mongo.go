package oclient

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ TokenStore = &MongoTokenStore{}

// MongoTokenStore is a MongoDB-backed implementation of TokenStore.
type MongoTokenStore struct {
	tokens *mongo.Collection
}

// NewMongoTokenStore creates a new store backed by the given DB.
func NewMongoTokenStore(db *mongo.Database) *MongoTokenStore {
	return &MongoTokenStore{
		tokens: db.Collection("oauth_client_tokens"),
	}
}

func tokenFilter(accountID, userID, provider string) bson.M {
	return bson.M{"account_id": accountID, "user_id": userID, "provider": provider}
}

// StoreTokens upserts a user’s token pair.
func (s *MongoTokenStore) StoreTokens(ctx context.Context, accountID, userID, provider string, t TokenPair) error {
	upd := bson.M{"$set": bson.M{
		"token_type":    t.TokenType,
		"access_token":  t.AccessToken,
		"refresh_token": t.RefreshToken,
		"scope":         t.Scope,
		"expires_at":    t.ExpiresAt,
		"issued_at":     t.IssuedAt,
		"updated_at":    time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	_, err := s.tokens.UpdateOne(ctx, tokenFilter(accountID, userID, provider), upd, opts)
	return err
}

// GetTokens retrieves stored tokens. Expired tokens are returned as is; refreshing
// them is up to the caller.
func (s *MongoTokenStore) GetTokens(ctx context.Context, accountID, userID, provider string) (TokenPair, error) {
	var doc struct {
		TokenType    string    `bson:"token_type"`
		AccessToken  string    `bson:"access_token"`
		RefreshToken string    `bson:"refresh_token"`
		Scope        []string  `bson:"scope"`
		ExpiresAt    time.Time `bson:"expires_at"`
		IssuedAt     time.Time `bson:"issued_at"`
	}
	err := s.tokens.FindOne(ctx, tokenFilter(accountID, userID, provider)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return TokenPair{}, ErrTokensNotFound
		}
		return TokenPair{}, err
	}
	return TokenPair{
		TokenType:    doc.TokenType,
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		Scope:        doc.Scope,
		ExpiresAt:    doc.ExpiresAt,
		IssuedAt:     doc.IssuedAt,
	}, nil
}

// DeleteTokens removes stored tokens.
func (s *MongoTokenStore) DeleteTokens(ctx context.Context, accountID, userID, provider string) error {
	_, err := s.tokens.DeleteOne(ctx, tokenFilter(accountID, userID, provider))
	return err
}
