package oclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoTokenStore_StoreTokens(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		store := NewMongoTokenStore(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		c := NewClient("abc", WithAccessToken("t1"), WithRefreshToken("r1"))
		if err := Save(context.Background(), store, c, "acct", "user", "github"); err != nil {
			mt.Fatalf("Save failed: %v", err)
		}
	})

	mt.Run("update error", func(mt *mtest.T) {
		store := NewMongoTokenStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 1, Message: "update error"}))

		err := store.StoreTokens(context.Background(), "acct", "user", "github", TokenPair{AccessToken: "t1"})
		if err == nil {
			mt.Fatal("StoreTokens did not return an error")
		}
	})
}

func TestMongoTokenStore_GetTokens(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := issued.Add(time.Hour)

	mt.Run("success", func(mt *mtest.T) {
		store := NewMongoTokenStore(mt.DB)
		doc := bson.D{
			{Key: "account_id", Value: "acct"},
			{Key: "user_id", Value: "user"},
			{Key: "provider", Value: "github"},
			{Key: "token_type", Value: "Bearer"},
			{Key: "access_token", Value: "t1"},
			{Key: "refresh_token", Value: "r1"},
			{Key: "scope", Value: bson.A{"read", "write"}},
			{Key: "expires_at", Value: expires},
			{Key: "issued_at", Value: issued},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "foo.bar", mtest.FirstBatch, doc))

		c := NewWebApplicationClient("abc")
		if err := Load(context.Background(), store, c, "acct", "user", "github"); err != nil {
			mt.Fatalf("Load failed: %v", err)
		}
		want := TokenPair{
			TokenType:    "Bearer",
			AccessToken:  "t1",
			RefreshToken: "r1",
			Scope:        []string{"read", "write"},
			ExpiresAt:    expires,
			IssuedAt:     issued,
		}
		if diff := cmp.Diff(want, c.TokenPair()); diff != "" {
			mt.Errorf("TokenPair mismatch (-want +got):\n%s", diff)
		}
		if c.ExpiresIn != 3600 {
			mt.Errorf("ExpiresIn = %d, want 3600", c.ExpiresIn)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		store := NewMongoTokenStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "foo.bar", mtest.FirstBatch))

		_, err := store.GetTokens(context.Background(), "acct", "user", "github")
		if !errors.Is(err, ErrTokensNotFound) {
			mt.Errorf("expected ErrTokensNotFound, got %v", err)
		}
	})
}

func TestMongoTokenStore_DeleteTokens(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		store := NewMongoTokenStore(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}})
		if err := store.DeleteTokens(context.Background(), "acct", "user", "github"); err != nil {
			mt.Fatalf("DeleteTokens failed: %v", err)
		}
	})

	mt.Run("delete error", func(mt *mtest.T) {
		store := NewMongoTokenStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 1, Message: "delete error"}))
		if err := store.DeleteTokens(context.Background(), "acct", "user", "github"); err == nil {
			mt.Fatal("DeleteTokens did not return an error")
		}
	})
}
