package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/respond"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
)

// IdentityLookup resolves identities by id. store.Users satisfies it.
type IdentityLookup interface {
	Get(ctx context.Context, id string) (*model.Identity, error)
}

// Authenticator resolves a session credential to an Identity. The same
// routine backs both the request channel (Middleware) and the connection
// channel (Handshake).
type Authenticator struct {
	tokens *Tokens
	users  IdentityLookup
	log    zerolog.Logger
}

// NewAuthenticator wires the verifier to the identity store.
func NewAuthenticator(tokens *Tokens, users IdentityLookup, log zerolog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// Authenticate verifies rawToken and loads the identity it names.
// Credential failures are one of ErrNoToken, ErrInvalidSignature, ErrExpired
// or ErrIdentityNotFound; anything else is an infrastructure error.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (*model.Identity, error) {
	id, err := a.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}
	ident, err := a.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup identity %s: %w", id, err)
	}
	return ident, nil
}

// Middleware authenticates HTTP requests from the session cookie and adds
// the identity to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := a.Authenticate(r.Context(), TokenFromRequest(r))
		if err != nil {
			if IsAuthError(err) {
				a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("request unauthorized")
				respond.WriteError(w, http.StatusUnauthorized, unauthorizedMessage(err))
				return
			}
			a.log.Error().Stack().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			respond.WriteInternalError(w, "Internal server error")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

// Handshake authenticates a connection upgrade request. Credential failures
// are returned as *HandshakeError carrying the refusal code.
func (a *Authenticator) Handshake(r *http.Request) (*model.Identity, error) {
	ident, err := a.Authenticate(r.Context(), TokenFromRequest(r))
	if err != nil {
		if IsAuthError(err) {
			return nil, &HandshakeError{Code: handshakeCode(err), Err: err}
		}
		return nil, err
	}
	return ident, nil
}

// Tokens exposes the credential codec so login can issue cookies.
func (a *Authenticator) Tokens() *Tokens { return a.tokens }

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns a context carrying ident.
func WithIdentity(ctx context.Context, ident *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, ident)
}

// IdentityFromContext retrieves the authenticated identity from the request context.
func IdentityFromContext(ctx context.Context) *model.Identity {
	ident, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok {
		return nil
	}
	return ident
}
