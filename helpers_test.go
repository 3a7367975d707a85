package identityauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/identityauth/directory/memory"
	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/password"
)

const (
	testSecret   = "engine-test-secret-engine-test-secret"
	testPassword = "Wonder1and!"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.JWT.Issuer = "https://issuer.test"
	cfg.JWT.Audience = "api.test"
	return cfg
}

func fastHasher(t testing.TB) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func newTestDirectory(t testing.TB) *memory.Directory {
	t.Helper()
	dir, err := memory.New(fastHasher(t))
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	return dir
}

// newTestEngine builds an engine over a fresh memory directory. configure
// may adjust the builder before Build.
func newTestEngine(t testing.TB, cfg Config, configure func(*Builder)) (*Engine, *memory.Directory) {
	t.Helper()
	dir := newTestDirectory(t)
	b := New().WithConfig(cfg).WithDirectory(dir)
	if configure != nil {
		configure(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, dir
}

func seedUser(t testing.TB, dir *memory.Directory, email string, roles ...identity.Role) *identity.User {
	t.Helper()
	ctx := context.Background()
	u, err := dir.Create(ctx, identity.Profile{FirstName: "Test", LastName: "User", Email: email}, testPassword)
	if err != nil {
		t.Fatalf("Create %s: %v", email, err)
	}
	for _, r := range roles {
		if err := dir.AddToRole(ctx, u.ID, r); err != nil {
			t.Fatalf("AddToRole %s: %v", r, err)
		}
	}
	return u
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
