package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/directory/memory"
	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/password"
)

func newServer(t *testing.T) (*httptest.Server, *memory.Directory) {
	t.Helper()
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	dir, err := memory.New(hasher)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}

	cfg := identityauth.DefaultConfig()
	cfg.JWT.Secret = "httpapi-test-secret-httpapi-test-secret"
	cfg.JWT.Issuer = "https://issuer.test"
	cfg.JWT.Audience = "api.test"

	engine, err := identityauth.New().WithConfig(cfg).WithDirectory(dir).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(New(engine, nil, nil))
	t.Cleanup(srv.Close)
	return srv, dir
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func getUser(t *testing.T, srv *httptest.Server, token, username string) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/user?username="+username, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/user: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestAuthLifecycleOverHTTP(t *testing.T) {
	srv, _ := newServer(t)

	var reg identityauth.RegisterResult
	status := postJSON(t, srv.URL+"/api/auth/register", identityauth.RegisterRequest{
		FirstName: "Alice", LastName: "Liddell", Email: "alice@example.com", Password: "Wonder1and!",
	}, &reg)
	if status != http.StatusOK || !reg.Success {
		t.Fatalf("register: status=%d result=%+v", status, reg)
	}

	var pair identityauth.LoginResult
	if status := postJSON(t, srv.URL+"/api/auth/login", loginRequest{UserName: "alice@example.com", Password: "Wonder1and!"}, &pair); status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("login returned empty pair %+v", pair)
	}

	if status := getUser(t, srv, pair.AccessToken, "alice@example.com"); status != http.StatusOK {
		t.Fatalf("get user status = %d", status)
	}
	if status := getUser(t, srv, pair.AccessToken, "nobody@example.com"); status != http.StatusNotFound {
		t.Fatalf("missing user status = %d", status)
	}
	if status := getUser(t, srv, "", "alice@example.com"); status != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", status)
	}

	var next identityauth.LoginResult
	if status := postJSON(t, srv.URL+"/api/auth/refresh", refreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, &next); status != http.StatusOK {
		t.Fatalf("refresh status = %d", status)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh value was not rotated")
	}
	if status := postJSON(t, srv.URL+"/api/auth/refresh", refreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil); status != http.StatusBadRequest {
		t.Fatalf("replayed refresh status = %d", status)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _ := newServer(t)
	var body errorBody
	if status := postJSON(t, srv.URL+"/api/auth/login", loginRequest{UserName: "ghost@example.com", Password: "x"}, &body); status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if body.Error != "invalid credentials" {
		t.Fatalf("error = %q", body.Error)
	}

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader([]byte(`{"bogus":1}`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", resp.StatusCode)
	}
}

func TestRegisterWeakPasswordReturnsErrors(t *testing.T) {
	srv, _ := newServer(t)
	var reg identityauth.RegisterResult
	status := postJSON(t, srv.URL+"/api/auth/register", identityauth.RegisterRequest{
		FirstName: "Weak", Email: "weak@example.com", Password: "abc",
	}, &reg)
	if status != http.StatusBadRequest || reg.Success || len(reg.Errors) == 0 {
		t.Fatalf("status=%d result=%+v", status, reg)
	}
}

func TestGetUserForbiddenForReader(t *testing.T) {
	srv, dir := newServer(t)
	ctx := context.Background()

	u, err := dir.Create(ctx, identity.Profile{FirstName: "Rita", Email: "rita@example.com"}, "Read3r!pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := dir.AddToRole(ctx, u.ID, identity.RoleReader); err != nil {
		t.Fatalf("AddToRole: %v", err)
	}

	var pair identityauth.LoginResult
	if status := postJSON(t, srv.URL+"/api/auth/login", loginRequest{UserName: "rita@example.com", Password: "Read3r!pw"}, &pair); status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	if status := getUser(t, srv, pair.AccessToken, "rita@example.com"); status != http.StatusForbidden {
		t.Fatalf("reader status = %d, want 403", status)
	}
}
