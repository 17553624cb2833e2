package oauth2core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/Seann-Moser/rbac"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Seann-Moser/oauth2core/oauth/oserver"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// Stores are the connections the reference host adapters run on. Mongo is
// required. Redis, when set, takes over codes and tokens. Roles, usually an
// *rbac.Manager, decides scopes instead of the client registry when set.
type Stores struct {
	Mongo     *mongo.Database
	Redis     redis.Cmdable
	KeyPrefix string
	Roles     oserver.RoleLister
	// DefaultScopes narrows the scopes granted from Roles when a request names none.
	DefaultScopes []string
}

// NewValidator routes every host callback to the adapter that owns it.
func NewValidator(s Stores, opts ...oserver.Option) *oserver.CompositeValidator {
	registry := oserver.NewMongoValidator(s.Mongo, opts...)
	v := &oserver.CompositeValidator{
		Clients:       registry,
		Scopes:        registry,
		Redirects:     registry,
		Grants:        registry,
		Authenticator: registry,
		Tokens:        registry,
		Bearer:        registry,
		Codes:         registry,
		Refresh:       registry,
		Users:         registry,
		Revoker:       registry,
	}
	if s.Redis != nil {
		grants := oserver.NewRedisGrantStore(s.Redis, s.KeyPrefix, opts...)
		v.Grants = grants
		v.Tokens = grants
		v.Bearer = grants
		v.Codes = grants
		v.Refresh = grants
		v.Revoker = grants
	}
	if s.Roles != nil {
		v.Scopes = oserver.NewRBACScopeValidator(s.Roles, s.DefaultScopes...)
	}
	return v
}

func NewServer(s Stores, opts ...oserver.Option) *oserver.Server {
	return oserver.NewServer(NewValidator(s, opts...), opts...)
}

type contextKey string

const grantKey contextKey = "OAUTH2_ACCESS_GRANT"

// GrantFromContext returns the grant Middleware verified for this request.
func GrantFromContext(ctx context.Context) (*oserver.AccessGrant, bool) {
	g, ok := ctx.Value(grantKey).(*oserver.AccessGrant)
	return g, ok
}

func withGrant(ctx context.Context, g *oserver.AccessGrant) context.Context {
	return context.WithValue(ctx, grantKey, g)
}

// Credentials guards HTTP handlers with bearer tokens checked by a resource
// server. When perms is set the token's user must also be allowed the request's
// path and method.
type Credentials struct {
	server oserver.ResourceServer
	perms  *rbac.Manager
	logger *slog.Logger
	// TrustForwarded makes request URIs honor X-Forwarded-Proto and
	// X-Forwarded-Host, for services behind a proxy.
	TrustForwarded bool
}

func NewCredentials(server oserver.ResourceServer, perms *rbac.Manager, logger *slog.Logger) *Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	return &Credentials{server: server, perms: perms, logger: logger}
}

// Middleware rejects requests without a valid token carrying every scope in
// required. The verified grant is available through GrantFromContext.
func (c *Credentials) Middleware(required ...string) func(http.Handler) http.Handler {
	want := scope.New(required...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := formBody(r)
			if err != nil {
				c.logger.Debug("failed to read request body", "error", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			grant, err := c.server.VerifyRequest(r.Context(), c.fullURL(r), r.Method, body, r.Header, want)
			if err != nil {
				status := oserver.StatusCode(err)
				if status >= http.StatusInternalServerError {
					c.logger.Error("token verification failed", "error", err)
				}
				w.Header().Set("WWW-Authenticate", c.server.Challenge(err))
				w.WriteHeader(status)
				return
			}
			if c.perms != nil {
				allowed, err := c.allowed(r, grant)
				if err != nil {
					c.logger.Error("permission check failed", "client_id", grant.ClientID, "error", err)
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(withGrant(r.Context(), grant)))
		})
	}
}

// allowed asks rbac whether the grant's subject may perform the request. Client
// credentials grants have no user, so the client itself is the subject.
func (c *Credentials) allowed(r *http.Request, grant *oserver.AccessGrant) (bool, error) {
	subject := grant.UserID
	if subject == "" {
		subject = grant.ClientID
	}
	ok, err := c.perms.Can(r.Context(), subject, r.URL.Path, rbac.HTTPMethodToAction(r.Method))
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Debug("permission denied", "subject", subject, "path", r.URL.Path, "method", r.Method)
	}
	return ok, nil
}

// formBody reads a form-encoded body and puts it back for the next handler.
// Other bodies are left unread.
func formBody(r *http.Request) (string, error) {
	if r.Body == nil || r.Method == http.MethodGet {
		return "", nil
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != string(oserver.ContentTypeForm) {
		return "", nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", errors.Join(err, r.Body.Close())
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return string(data), nil
}

func (c *Credentials) fullURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if c.TrustForwarded {
		// Trust X-Forwarded-Proto if set (e.g., behind Nginx)
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
			host = fwdHost
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
