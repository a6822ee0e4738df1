package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/credentials"
	"github.com/JonMunkholm/stockdash/internal/logging"
)

// TokenVerifier resolves a session token to the signed-in user.
type TokenVerifier interface {
	Verify(token string) (credentials.Credential, error)
}

type ctxKey struct{}

// CredentialFromContext returns the user attached by SessionAuth.
func CredentialFromContext(ctx context.Context) (credentials.Credential, bool) {
	c, ok := ctx.Value(ctxKey{}).(credentials.Credential)
	return c, ok
}

// SessionAuth returns middleware that requires a valid session token, read
// from the named cookie or an "Authorization: Bearer" header. The user's
// email becomes the audit actor of the request.
// If enabled is false, all requests pass through.
func SessionAuth(tokens TokenVerifier, cookieName string, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				if c, err := r.Cookie(cookieName); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				logging.FromContext(r.Context()).Warn("auth: missing session",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, "AUTH_MISSING_SESSION")
				return
			}

			cred, err := tokens.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("auth: invalid session",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				unauthorized(w, "AUTH_INVALID_SESSION")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, cred)
			ctx = core.ContextWithActor(ctx, cred.Email)
			ctx = logging.ContextWith(ctx, "actor", cred.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"sign in required","message":"sign in required","code":"` + code + `"}`))
}
