package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/permission"
)

type fakeAuthorizer struct {
	roles []string
}

func (f fakeAuthorizer) Authorize(_ context.Context, token string, roles ...identityauth.Role) (*identityauth.AuthResult, error) {
	if token != "good" {
		return nil, identityauth.ErrUnauthorized
	}
	res := &identityauth.AuthResult{UserID: "u1", Roles: f.roles}
	required := make([]string, 0, len(roles))
	for _, r := range roles {
		required = append(required, string(r))
	}
	if err := permission.Check(required, res.Roles); err != nil {
		return res, identityauth.ErrForbidden
	}
	return res, nil
}

func TestRequireRoles(t *testing.T) {
	var seen *identityauth.AuthResult
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthResultFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		auth   Authorizer
		header string
		roles  []identityauth.Role
		want   int
	}{
		{"no header", fakeAuthorizer{}, "", nil, http.StatusUnauthorized},
		{"not bearer", fakeAuthorizer{}, "Basic abc", nil, http.StatusUnauthorized},
		{"empty bearer", fakeAuthorizer{}, "Bearer ", nil, http.StatusUnauthorized},
		{"bad token", fakeAuthorizer{}, "Bearer bad", nil, http.StatusUnauthorized},
		{"nil authorizer", nil, "Bearer good", nil, http.StatusUnauthorized},
		{"any valid token", fakeAuthorizer{roles: []string{"Reader"}}, "Bearer good", nil, http.StatusNoContent},
		{"lowercase scheme", fakeAuthorizer{roles: []string{"Reader"}}, "bearer  good ", nil, http.StatusNoContent},
		{"role held", fakeAuthorizer{roles: []string{"User"}}, "Bearer good", []identityauth.Role{identityauth.RoleAdministrator, identityauth.RoleUser}, http.StatusNoContent},
		{"role missing", fakeAuthorizer{roles: []string{"Reader"}}, "Bearer good", []identityauth.Role{identityauth.RoleAdministrator, identityauth.RoleUser}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireRoles(tt.auth, tt.roles...)(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent {
				if seen == nil || seen.UserID != "u1" {
					t.Fatalf("auth result not propagated: %+v", seen)
				}
				return
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("rejection without WWW-Authenticate challenge")
			}
		})
	}
}

func TestGuardIsRoleless(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	Guard(fakeAuthorizer{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestClientIPStripsPort(t *testing.T) {
	tests := map[string]string{
		"203.0.113.7:52311": "203.0.113.7",
		"[2001:db8::1]:443": "2001:db8::1",
		"pipe":              "pipe",
	}
	for remote, want := range tests {
		var seen string
		h := ClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = identityauth.ClientIPFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remote
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != want {
			t.Fatalf("RemoteAddr %q: ip = %q, want %q", remote, seen, want)
		}
	}
}

func TestRequirePolicy(t *testing.T) {
	policy := permission.Policy{Name: "user.read", Required: []string{"Administrator", "User"}}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	for roles, want := range map[string]int{"User": http.StatusOK, "Reader": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		RequirePolicy(fakeAuthorizer{roles: []string{roles}}, policy)(ok).ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: status = %d, want %d", roles, rec.Code, want)
		}
	}
}
