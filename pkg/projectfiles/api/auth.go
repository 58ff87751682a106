package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
)

// DefaultIdentityHeader carries the caller's user ID when header auth is used.
const DefaultIdentityHeader = "X-User-Id"

// ErrUnauthenticated is returned when a request carries no usable identity
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller
type Identity struct {
	UserID string
}

// Authenticator resolves the caller of a request
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// HeaderAuthenticator trusts an identity header set by an upstream gateway.
type HeaderAuthenticator struct {
	Header string
}

// NewHeaderAuthenticator creates a header authenticator; an empty header
// selects DefaultIdentityHeader.
func NewHeaderAuthenticator(header string) *HeaderAuthenticator {
	if header == "" {
		header = DefaultIdentityHeader
	}
	return &HeaderAuthenticator{Header: header}
}

func (a *HeaderAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(a.Header))
	if userID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: userID}, nil
}

// JWTAuthenticator verifies an HS256 bearer token and uses its subject.
type JWTAuthenticator struct {
	auth *jwtauth.JWTAuth
}

// NewJWTAuthenticator creates a JWT authenticator for the shared secret
func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{auth: jwtauth.New("HS256", secret, nil)}
}

// JWTAuth exposes the underlying signer, used to mint tokens in tests and tools.
func (a *JWTAuthenticator) JWTAuth() *jwtauth.JWTAuth {
	return a.auth
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	token, err := jwtauth.VerifyRequest(a.auth, r, jwtauth.TokenFromHeader)
	if err != nil {
		return Identity{}, errors.Join(ErrUnauthenticated, err)
	}
	subject := strings.TrimSpace(token.Subject())
	if subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: subject}, nil
}

type identityKey struct{}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by RequireIdentity
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireIdentity rejects requests the authenticator cannot resolve.
func RequireIdentity(auth Authenticator, rs Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(r)
			if err != nil {
				rs.logger().DebugContext(r.Context(), "authentication failed", "path", r.URL.Path, "err", err)
				rs.Fail(w, r, CodeUnauthorized, "Authentication required", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
