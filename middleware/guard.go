package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/permission"
)

// Authorizer is satisfied by *identityauth.Engine.
type Authorizer interface {
	Authorize(ctx context.Context, token string, roles ...identityauth.Role) (*identityauth.AuthResult, error)
}

type authResultKey struct{}

// AuthResultFromContext returns the identity a guard admitted.
func AuthResultFromContext(ctx context.Context) (*identityauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultKey{}).(*identityauth.AuthResult)
	return res, ok
}

// Guard admits requests carrying any valid access token.
func Guard(auth Authorizer) func(http.Handler) http.Handler {
	return RequireRoles(auth)
}

// RequireRoles admits requests whose bearer access token carries at least
// one of roles. It answers 401 for a missing or bad token and 403 for a
// valid token without a listed role.
func RequireRoles(auth Authorizer, roles ...identityauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if auth == nil || token == "" {
				deny(w, identityauth.ErrUnauthorized)
				return
			}
			res, err := auth.Authorize(r.Context(), token, roles...)
			if err != nil {
				deny(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authResultKey{}, res)))
		})
	}
}

func deny(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="identityauth"`)
	if errors.Is(err, identityauth.ErrForbidden) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}

// bearerToken extracts the credential from an Authorization header. The
// scheme name is case-insensitive.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequirePolicy is RequireRoles over the roles a permission.Policy allows.
func RequirePolicy(auth Authorizer, p permission.Policy) func(http.Handler) http.Handler {
	roles := make([]identityauth.Role, len(p.Required))
	for i, r := range p.Required {
		roles[i] = identityauth.Role(r)
	}
	return RequireRoles(auth, roles...)
}
