// Package memory is an in-process identity.Directory. It backs tests and the
// zero-dependency mode of the binary; all state is lost on restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/password"
	"github.com/google/uuid"
)

type account struct {
	user         identity.User
	passwordHash string
	roles        []identity.Role
}

// Directory is safe for concurrent use. SwapRefreshState holds the write
// lock for the whole compare-and-swap.
type Directory struct {
	mu         sync.RWMutex
	byID       map[string]*account
	byUsername map[string]string

	hasher    *password.Argon2
	policy    password.Policy
	dummyHash string
}

// Option customises a Directory.
type Option func(*Directory)

// WithPolicy replaces the default password policy.
func WithPolicy(p password.Policy) Option {
	return func(d *Directory) { d.policy = p }
}

// New returns an empty Directory hashing with hasher.
func New(hasher *password.Argon2, opts ...Option) (*Directory, error) {
	if hasher == nil {
		return nil, errors.New("memory: hasher is required")
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("memory: dummy hash: %w", err)
	}
	d := &Directory{
		byID:       make(map[string]*account),
		byUsername: make(map[string]string),
		hasher:     hasher,
		policy:     password.DefaultPolicy(),
		dummyHash:  dummy,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// VerifyPassword checks username/password. Unknown users still pay for one
// hash verification.
func (d *Directory) VerifyPassword(ctx context.Context, username, pw string) (*identity.User, error) {
	d.mu.RLock()
	acc := d.lookupUsername(username)
	var hash string
	var user identity.User
	if acc != nil {
		hash = acc.passwordHash
		user = copyUser(acc.user)
	}
	d.mu.RUnlock()

	if acc == nil {
		_, _ = d.hasher.Verify(pw, d.dummyHash)
		return nil, identity.ErrUserNotFound
	}
	ok, err := d.hasher.Verify(pw, hash)
	if err != nil {
		return nil, fmt.Errorf("memory: verify: %w", err)
	}
	if !ok {
		return nil, identity.ErrInvalidPassword
	}
	d.upgradeHash(user.ID, hash, pw)
	return &user, nil
}

// upgradeHash rehashes pw under the current parameters when stored was made
// with weaker ones. A concurrent password change wins.
func (d *Directory) upgradeHash(userID, stored, pw string) {
	if stale, err := d.hasher.NeedsUpgrade(stored); err != nil || !stale {
		return
	}
	fresh, err := d.hasher.Hash(pw)
	if err != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if acc, ok := d.byID[userID]; ok && acc.passwordHash == stored {
		acc.passwordHash = fresh
	}
}

// FindByID returns a copy of the user with id.
func (d *Directory) FindByID(ctx context.Context, id string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	u := copyUser(acc.user)
	return &u, nil
}

// FindByUsername returns a copy of the user with username, ignoring case.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc := d.lookupUsername(username)
	if acc == nil {
		return nil, identity.ErrUserNotFound
	}
	u := copyUser(acc.user)
	return &u, nil
}

// Create registers a new user whose username is the profile email.
func (d *Directory) Create(ctx context.Context, profile identity.Profile, pw string) (*identity.User, error) {
	profile = identity.NormalizeProfile(profile)
	problems := identity.ValidateProfile(profile)
	problems = append(problems, d.policy.Validate(pw)...)
	if len(problems) > 0 {
		return nil, &identity.ValidationError{Problems: problems}
	}

	hash, err := d.hasher.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("memory: hash: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := usernameKey(profile.Email)
	if _, taken := d.byUsername[key]; taken {
		return nil, &identity.ValidationError{Problems: []string{identity.DuplicateEmail(profile.Email)}}
	}
	acc := &account{
		user: identity.User{
			ID:        uuid.NewString(),
			UserName:  profile.Email,
			Email:     profile.Email,
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
		},
		passwordHash: hash,
	}
	d.byID[acc.user.ID] = acc
	d.byUsername[key] = acc.user.ID

	u := copyUser(acc.user)
	return &u, nil
}

// GetRoles returns the user's roles sorted by name.
func (d *Directory) GetRoles(ctx context.Context, userID string) ([]identity.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	out := make([]identity.Role, len(acc.roles))
	copy(out, acc.roles)
	return out, nil
}

// AddToRole is idempotent.
func (d *Directory) AddToRole(ctx context.Context, userID string, role identity.Role) error {
	if !role.Valid() {
		return fmt.Errorf("memory: unknown role %q", role)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	for _, r := range acc.roles {
		if r == role {
			return nil
		}
	}
	acc.roles = append(acc.roles, role)
	sort.Slice(acc.roles, func(i, j int) bool { return acc.roles[i] < acc.roles[j] })
	return nil
}

// RemoveFromRole revokes role; a no-op when the user does not hold it.
func (d *Directory) RemoveFromRole(ctx context.Context, userID string, role identity.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	kept := acc.roles[:0]
	for _, r := range acc.roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	acc.roles = kept
	return nil
}

// UpdateRefreshState overwrites the user's refresh record.
func (d *Directory) UpdateRefreshState(ctx context.Context, userID string, record identity.RefreshRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	r := record
	acc.user.Refresh = &r
	return nil
}

// SwapRefreshState replaces the record only when presented matches a live record.
func (d *Directory) SwapRefreshState(ctx context.Context, userID, presented string, next identity.RefreshRecord, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	if err := acc.user.Refresh.Check(presented, now); err != nil {
		return err
	}
	r := next
	acc.user.Refresh = &r
	return nil
}

func (d *Directory) lookupUsername(username string) *account {
	id, ok := d.byUsername[usernameKey(username)]
	if !ok {
		return nil
	}
	return d.byID[id]
}

func copyUser(u identity.User) identity.User {
	if u.Refresh != nil {
		r := *u.Refresh
		u.Refresh = &r
	}
	return u
}
