package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUserNotFound is returned by directory lookups that match no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword is returned by VerifyPassword when the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrRefreshNotFound means the user holds no refresh credential record.
	ErrRefreshNotFound = errors.New("refresh credential not found")
	// ErrRefreshExpired means the stored record's expiry is not in the future.
	ErrRefreshExpired = errors.New("refresh credential expired")
	// ErrRefreshMismatch means the presented value differs from the stored value.
	ErrRefreshMismatch = errors.New("refresh credential mismatch")
	// ErrValidation marks registration input problems.
	ErrValidation = errors.New("validation failed")
)

// Role is one of the fixed roles a user can hold.
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleUser          Role = "User"
	RoleReader        Role = "Reader"
)

// Roles lists every known role in declaration order.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleUser, RoleReader}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleUser, RoleReader:
		return true
	default:
		return false
	}
}

// ParseRole matches name against the known roles, ignoring case.
func ParseRole(name string) (Role, bool) {
	for _, r := range Roles() {
		if strings.EqualFold(string(r), strings.TrimSpace(name)) {
			return r, true
		}
	}
	return "", false
}

// RefreshRecord is the single live refresh credential a user holds.
type RefreshRecord struct {
	Value     string
	ExpiresAt time.Time
}

// Check reports whether presented may be exchanged against r at now.
// A record is live only while now is strictly before ExpiresAt and the
// values are byte-equal.
func (r *RefreshRecord) Check(presented string, now time.Time) error {
	if r == nil || r.Value == "" {
		return ErrRefreshNotFound
	}
	if !now.Before(r.ExpiresAt) {
		return ErrRefreshExpired
	}
	if subtle.ConstantTimeCompare([]byte(r.Value), []byte(presented)) != 1 {
		return ErrRefreshMismatch
	}
	return nil
}

// User is the directory's view of an account.
type User struct {
	ID        string
	UserName  string
	Email     string
	FirstName string
	LastName  string
	Refresh   *RefreshRecord
}

// Profile is the registration input. The username is the email.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
}

// ValidationError carries one human-readable description per problem.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for every *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RefreshStateStore owns per-user refresh credential state.
//
// SwapRefreshState must be a single atomic conditional update: it replaces the
// stored record with next only when the stored record is live and its value
// equals presented, otherwise it returns ErrRefreshNotFound, ErrRefreshExpired
// or ErrRefreshMismatch and leaves the stored record untouched.
type RefreshStateStore interface {
	UpdateRefreshState(ctx context.Context, userID string, record RefreshRecord) error
	SwapRefreshState(ctx context.Context, userID, presented string, next RefreshRecord, now time.Time) error
}

// Directory is the external user store the authentication core composes.
//
// VerifyPassword returns ErrUserNotFound or ErrInvalidPassword for bad
// credentials and any other error for backend failures. Create returns a
// *ValidationError for input problems, including a duplicate email.
type Directory interface {
	VerifyPassword(ctx context.Context, username, password string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, profile Profile, password string) (*User, error)
	GetRoles(ctx context.Context, userID string) ([]Role, error)
	AddToRole(ctx context.Context, userID string, role Role) error
	RefreshStateStore
}
