package oserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrUserExists     = errors.New("user already exists")
)

var (
	_ Validator             = &MongoValidator{}
	_ RefreshTokenValidator = &MongoValidator{}
	_ PasswordValidator     = &MongoValidator{}
)

const (
	recordCode  = "code"
	recordToken = "token"
)

// MongoValidator implements every host callback on top of MongoDB. Expects a
// connected mongo.Database; indexes are the caller's concern.
type MongoValidator struct {
	clientsColl *mongo.Collection
	tokensColl  *mongo.Collection
	usersColl   *mongo.Collection
	opts        options
}

func NewMongoValidator(db *mongo.Database, opts ...Option) *MongoValidator {
	return &MongoValidator{
		clientsColl: db.Collection("oauth_clients"),
		tokensColl:  db.Collection("oauth_tokens"),
		usersColl:   db.Collection("oauth_users"),
		opts:        newOptions(opts),
	}
}

// tokenRecord is one document of oauth_tokens. Codes and token pairs share the
// collection and are told apart by Kind.
type tokenRecord struct {
	ID                  string    `bson:"_id"`
	Kind                string    `bson:"kind"`
	Code                string    `bson:"code,omitempty"`
	AccessToken         string    `bson:"access_token,omitempty"`
	RefreshToken        string    `bson:"refresh_token,omitempty"`
	ClientID            string    `bson:"client_id"`
	UserID              string    `bson:"user_id,omitempty"`
	RedirectURI         string    `bson:"redirect_uri,omitempty"`
	State               string    `bson:"state,omitempty"`
	CodeChallenge       string    `bson:"code_challenge,omitempty"`
	CodeChallengeMethod string    `bson:"code_challenge_method,omitempty"`
	Scopes              []string  `bson:"scopes"`
	GrantType           string    `bson:"grant_type,omitempty"`
	ExpiresAt           time.Time `bson:"expires_at"`
	CreatedAt           time.Time `bson:"created_at"`
}

func ss(i interface{}) string {
	switch v := i.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		slog.Error("skipping type")
		return ""
	}
}

// RegisterClient inserts a new OAuth client into the store.
func (s *MongoValidator) RegisterClient(ctx context.Context, client *OAuthClient) (*OAuthClient, error) {
	clientDoc := bson.M{
		"client_id":                  client.ClientID,
		"account_id":                 client.AccountID,
		"client_secret":              client.ClientSecret,
		"name":                       client.Name,
		"redirect_uris":              client.RedirectURIs,
		"scopes":                     client.Scopes,
		"grant_types":                client.GrantTypes,
		"response_types":             client.ResponseTypes,
		"token_endpoint_auth_method": client.TokenEndpointAuth,
	}
	_, err := s.clientsColl.InsertOne(ctx, clientDoc)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient retrieves a client by ID. An unknown client is nil, nil.
func (s *MongoValidator) GetClient(ctx context.Context, clientID string) (*OAuthClient, error) {
	var doc bson.M
	err := s.clientsColl.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &OAuthClient{
		ClientID:          ss(doc["client_id"]),
		AccountID:         ss(doc["account_id"]),
		ClientSecret:      ss(doc["client_secret"]),
		Name:              ss(doc["name"]),
		RedirectURIs:      castStringSlice(doc["redirect_uris"]),
		Scopes:            castStringSlice(doc["scopes"]),
		GrantTypes:        castStringSlice(doc["grant_types"]),
		ResponseTypes:     castStringSlice(doc["response_types"]),
		TokenEndpointAuth: ss(doc["token_endpoint_auth_method"]),
	}, nil
}

// ListClients returns all clients of an account, or every client when accountID is empty.
// Secrets are left out.
func (s *MongoValidator) ListClients(ctx context.Context, accountID string) ([]*OAuthClient, error) {
	filter := bson.M{}
	if accountID != "" {
		filter["account_id"] = accountID
	}
	cur, err := s.clientsColl.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var list []*OAuthClient
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		list = append(list, &OAuthClient{
			ClientID:      ss(doc["client_id"]),
			AccountID:     ss(doc["account_id"]),
			Name:          ss(doc["name"]),
			RedirectURIs:  castStringSlice(doc["redirect_uris"]),
			Scopes:        castStringSlice(doc["scopes"]),
			GrantTypes:    castStringSlice(doc["grant_types"]),
			ResponseTypes: castStringSlice(doc["response_types"]),
		})
	}
	return list, cur.Err()
}

// UpdateClient updates mutable fields on an existing client.
func (s *MongoValidator) UpdateClient(ctx context.Context, client *OAuthClient) (*OAuthClient, error) {
	update := bson.M{"$set": bson.M{
		"name":                       client.Name,
		"redirect_uris":              client.RedirectURIs,
		"scopes":                     client.Scopes,
		"grant_types":                client.GrantTypes,
		"response_types":             client.ResponseTypes,
		"token_endpoint_auth_method": client.TokenEndpointAuth,
	}}
	res, err := s.clientsColl.UpdateOne(ctx, bson.M{"client_id": client.ClientID}, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// DeleteClient removes a client by ID.
func (s *MongoValidator) DeleteClient(ctx context.Context, clientID string) error {
	res, err := s.clientsColl.DeleteOne(ctx, bson.M{"client_id": clientID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (s *MongoValidator) ValidateClient(ctx context.Context, clientID string) (bool, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return false, err
	}
	return client != nil, nil
}

// ValidateScopes allows only scopes registered on the client.
func (s *MongoValidator) ValidateScopes(ctx context.Context, clientID string, scopes scope.Scope) (bool, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil || client == nil {
		return false, err
	}
	return scopes.Subset(scope.Scope(client.Scopes)), nil
}

func (s *MongoValidator) DefaultScopes(ctx context.Context, clientID string) (scope.Scope, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil || client == nil {
		return nil, err
	}
	return scope.New(client.Scopes...), nil
}

// ValidateRedirectURI requires an exact match with a registered URI.
func (s *MongoValidator) ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) (bool, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil || client == nil {
		return false, err
	}
	return slices.Contains(client.RedirectURIs, redirectURI), nil
}

// DefaultRedirectURI is the registered URI when the client has exactly one.
func (s *MongoValidator) DefaultRedirectURI(ctx context.Context, clientID string) (string, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil || client == nil {
		return "", err
	}
	if len(client.RedirectURIs) != 1 {
		return "", nil
	}
	return client.RedirectURIs[0], nil
}

// AuthenticateClient compares secrets in constant time. Clients registered
// without a secret are public and must send none.
func (s *MongoValidator) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (bool, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil || client == nil {
		return false, err
	}
	if client.ClientSecret == "" {
		return clientSecret == "", nil
	}
	return subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) == 1, nil
}

func (s *MongoValidator) SaveAuthorizationGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	now := s.opts.now()
	_, err := s.tokensColl.InsertOne(ctx, tokenRecord{
		ID:                  uuid.NewString(),
		Kind:                recordCode,
		Code:                grant.Get("code"),
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		RedirectURI:         req.RequestedRedirectURI(),
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Scopes:              req.Scopes,
		GrantType:           string(GrantTypeAuthorizationCode),
		ExpiresAt:           now.Add(s.opts.cfg.AuthorizationCodeTTL.Duration),
		CreatedAt:           now,
	})
	return err
}

func (s *MongoValidator) SaveImplicitGrant(ctx context.Context, req *AuthorizationRequest, grant Grant) error {
	now := s.opts.now()
	_, err := s.tokensColl.InsertOne(ctx, tokenRecord{
		ID:          uuid.NewString(),
		Kind:        recordToken,
		AccessToken: grant.Get("access_token"),
		ClientID:    req.ClientID,
		UserID:      req.UserID,
		Scopes:      req.Scopes,
		GrantType:   string(GrantTypeImplicit),
		ExpiresAt:   now.Add(s.opts.cfg.ImplicitExpiresIn.Duration),
		CreatedAt:   now,
	})
	return err
}

// ValidateAuthorizationCode deletes the code as it reads it, so a code can be
// exchanged once.
func (s *MongoValidator) ValidateAuthorizationCode(ctx context.Context, clientID, code, redirectURI string) (*CodeGrant, error) {
	var rec tokenRecord
	err := s.tokensColl.FindOneAndDelete(ctx, bson.M{
		"kind":      recordCode,
		"code":      code,
		"client_id": clientID,
	}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.IsZero() && !s.opts.now().Before(rec.ExpiresAt) {
		return nil, nil
	}
	return &CodeGrant{
		ClientID:            rec.ClientID,
		UserID:              rec.UserID,
		RedirectURI:         rec.RedirectURI,
		Scopes:              rec.Scopes,
		State:               rec.State,
		CodeChallenge:       rec.CodeChallenge,
		CodeChallengeMethod: rec.CodeChallengeMethod,
	}, nil
}

func (s *MongoValidator) SaveBearerToken(ctx context.Context, token *BearerToken) error {
	_, err := s.tokensColl.InsertOne(ctx, tokenRecord{
		ID:           uuid.NewString(),
		Kind:         recordToken,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ClientID:     token.ClientID,
		UserID:       token.UserID,
		Scopes:       token.Scopes,
		GrantType:    string(token.GrantType),
		ExpiresAt:    token.ExpiresAt,
		CreatedAt:    s.opts.now(),
	})
	return err
}

func (s *MongoValidator) ValidateBearerToken(ctx context.Context, token string) (*AccessGrant, error) {
	rec, err := s.findToken(ctx, bson.M{"kind": recordToken, "access_token": token})
	if err != nil || rec == nil {
		return nil, err
	}
	return &AccessGrant{
		ClientID:  rec.ClientID,
		UserID:    rec.UserID,
		Scopes:    rec.Scopes,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// ValidateRefreshToken returns a grant without expiry; refresh tokens live
// until revoked.
func (s *MongoValidator) ValidateRefreshToken(ctx context.Context, clientID, refreshToken string) (*AccessGrant, error) {
	rec, err := s.findToken(ctx, bson.M{"kind": recordToken, "refresh_token": refreshToken, "client_id": clientID})
	if err != nil || rec == nil {
		return nil, err
	}
	return &AccessGrant{
		ClientID: rec.ClientID,
		UserID:   rec.UserID,
		Scopes:   rec.Scopes,
	}, nil
}

func (s *MongoValidator) findToken(ctx context.Context, filter bson.M) (*tokenRecord, error) {
	var rec tokenRecord
	err := s.tokensColl.FindOne(ctx, filter).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RevokeToken removes the token pair holding token. The hint only narrows the
// lookup order; both fields are searched.
func (s *MongoValidator) RevokeToken(ctx context.Context, clientID, token, tokenTypeHint string) error {
	fields := []string{"access_token", "refresh_token"}
	if tokenTypeHint == "refresh_token" {
		fields = []string{"refresh_token", "access_token"}
	}
	or := make([]bson.M, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: token})
	}
	_, err := s.tokensColl.DeleteOne(ctx, bson.M{
		"kind":      recordToken,
		"client_id": clientID,
		"$or":       or,
	})
	return err
}

// RegisterUser stores a resource owner for the password grant.
func (s *MongoValidator) RegisterUser(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.usersColl.InsertOne(ctx, bson.M{
		"_id":           uuid.NewString(),
		"username":      username,
		"password_hash": string(hash),
		"created_at":    s.opts.now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrUserExists
	}
	return err
}

func (s *MongoValidator) ValidateUser(ctx context.Context, clientID, username, password string) (bool, error) {
	var doc struct {
		PasswordHash string `bson:"password_hash"`
	}
	err := s.usersColl.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)); err != nil {
		s.opts.logger.Debug("password mismatch", "client_id", clientID, "username", username)
		return false, nil
	}
	return true, nil
}

// helpers
func castStringSlice(v interface{}) []string {
	if arr, ok := v.(primitive.A); ok {
		out := make([]string, 0, len(arr))
		for _, x := range arr {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
