package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/password"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	dsn := filepath.Join(t.TempDir(), "directory.db")
	s, err := Open(context.Background(), DriverSQLite, dsn, hasher)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "", nil); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := Migrate(context.Background(), s.db, DriverSQLite); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestCreateFindVerify(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, identity.Profile{FirstName: "Alice", LastName: "Liddell", Email: "alice@example.com"}, "Secr3t!pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.UserName != "alice@example.com" {
		t.Fatalf("username = %q", u.UserName)
	}

	byName, err := s.FindByUsername(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if byName.ID != u.ID || byName.LastName != "Liddell" || byName.Refresh != nil {
		t.Fatalf("unexpected user %+v", byName)
	}

	if _, err := s.VerifyPassword(ctx, "alice@example.com", "Secr3t!pw"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if _, err := s.VerifyPassword(ctx, "alice@example.com", "nope"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := s.VerifyPassword(ctx, "mallory@example.com", "Secr3t!pw"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateRejectsDuplicateAndWeak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, identity.Profile{FirstName: "Bob", Email: "bob@example.com"}, "Str0ng!pw"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var ve *identity.ValidationError
	_, err := s.Create(ctx, identity.Profile{FirstName: "Bob", Email: "BOB@example.com"}, "Str0ng!pw")
	if !errors.As(err, &ve) || ve.Problems[0] != identity.DuplicateEmail("BOB@example.com") {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	_, err = s.Create(ctx, identity.Profile{Email: "not-an-email"}, "weak")
	if !errors.As(err, &ve) || len(ve.Problems) < 3 {
		t.Fatalf("expected several problems, got %v", err)
	}
}

func TestRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, identity.Profile{FirstName: "C", Email: "c@example.com"}, "Str0ng!pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, r := range []identity.Role{identity.RoleUser, identity.RoleAdministrator, identity.RoleUser} {
		if err := s.AddToRole(ctx, u.ID, r); err != nil {
			t.Fatalf("AddToRole(%s): %v", r, err)
		}
	}
	roles, err := s.GetRoles(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetRoles: %v", err)
	}
	if len(roles) != 2 || roles[0] != identity.RoleAdministrator || roles[1] != identity.RoleUser {
		t.Fatalf("unexpected roles %v", roles)
	}
	if err := s.RemoveFromRole(ctx, u.ID, identity.RoleAdministrator); err != nil {
		t.Fatalf("RemoveFromRole: %v", err)
	}
	roles, _ = s.GetRoles(ctx, u.ID)
	if len(roles) != 1 {
		t.Fatalf("unexpected roles after removal %v", roles)
	}
	if _, err := s.GetRoles(ctx, "missing"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := s.AddToRole(ctx, u.ID, identity.Role("Owner")); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestRefreshStateSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, identity.Profile{FirstName: "D", Email: "d@example.com"}, "Str0ng!pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	now := time.Now()
	rec := func(v string) identity.RefreshRecord {
		return identity.RefreshRecord{Value: v, ExpiresAt: now.Add(time.Hour)}
	}

	if err := s.SwapRefreshState(ctx, u.ID, "v1", rec("v2"), now); !errors.Is(err, identity.ErrRefreshNotFound) {
		t.Fatalf("no record: got %v", err)
	}
	if err := s.UpdateRefreshState(ctx, u.ID, rec("v1")); err != nil {
		t.Fatalf("UpdateRefreshState: %v", err)
	}
	if err := s.SwapRefreshState(ctx, u.ID, "v1", rec("v2"), now); err != nil {
		t.Fatalf("SwapRefreshState: %v", err)
	}
	if err := s.SwapRefreshState(ctx, u.ID, "v1", rec("v3"), now); !errors.Is(err, identity.ErrRefreshMismatch) {
		t.Fatalf("superseded: got %v", err)
	}
	if err := s.SwapRefreshState(ctx, u.ID, "v2", rec("v3"), now.Add(time.Hour)); !errors.Is(err, identity.ErrRefreshExpired) {
		t.Fatalf("expired: got %v", err)
	}
	if err := s.UpdateRefreshState(ctx, "missing", rec("x")); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Refresh == nil || got.Refresh.Value != "v2" {
		t.Fatalf("stored refresh = %+v", got.Refresh)
	}
}

func TestRefreshStateConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, identity.Profile{FirstName: "E", Email: "e@example.com"}, "Str0ng!pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	now := time.Now()
	if err := s.UpdateRefreshState(ctx, u.ID, identity.RefreshRecord{Value: "shared", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdateRefreshState: %v", err)
	}

	const workers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			next := identity.RefreshRecord{Value: fmt.Sprintf("next-%d", i), ExpiresAt: now.Add(time.Hour)}
			if err := s.SwapRefreshState(ctx, u.ID, "shared", next, now); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestVerifyPasswordUpgradesWeakHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, identity.Profile{FirstName: "Alice", Email: "alice@example.com"}, "Secr3t!pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	stronger, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	s.hasher = stronger

	if _, err := s.VerifyPassword(ctx, "alice@example.com", "Secr3t!pw"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	var stored string
	if err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = ?`, u.ID).Scan(&stored); err != nil {
		t.Fatalf("select hash: %v", err)
	}
	if stale, err := stronger.NeedsUpgrade(stored); err != nil || stale {
		t.Fatalf("stored hash not upgraded: stale=%v err=%v", stale, err)
	}
}
