package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/identityauth/claims"
	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/internal"
	"github.com/MrEthical07/identityauth/jwt"
)

// ErrRejected matches every rotation failure.
var ErrRejected = errors.New("refresh rejected")

// FailureKind classifies rotation failures for metrics and audit.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidAccess
	FailureMissingSubject
	FailureUserNotFound
	FailureRoles
	FailureClaims
	FailureIssue
	FailureRefreshMissing
	FailureRefreshExpired
	FailureRefreshMismatch
	FailureRefreshMalformed
	FailureStore
)

var failureNames = [...]string{
	FailureNone:             "none",
	FailureInvalidAccess:    "invalid_access_token",
	FailureMissingSubject:   "missing_subject",
	FailureUserNotFound:     "user_not_found",
	FailureRoles:            "roles_unavailable",
	FailureClaims:           "claims",
	FailureIssue:            "issue",
	FailureRefreshMissing:   "refresh_missing",
	FailureRefreshExpired:   "refresh_expired",
	FailureRefreshMismatch:  "refresh_mismatch",
	FailureRefreshMalformed: "refresh_malformed",
	FailureStore:            "store_unavailable",
}

func (k FailureKind) String() string {
	if k < 0 || int(k) >= len(failureNames) {
		return "unknown"
	}
	return failureNames[k]
}

// Failure is the error returned by Rotate.
type Failure struct {
	Kind   FailureKind
	UserID string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("refresh rejected: %s", f.Kind)
	}
	return fmt.Sprintf("refresh rejected: %s: %v", f.Kind, f.Err)
}

// Unwrap exposes both ErrRejected and the underlying cause.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{ErrRejected}
	}
	return []error{ErrRejected, f.Err}
}

// Issuer signs claim sets and mints refresh values.
type Issuer interface {
	Issue(set claims.Set, lifetime time.Duration) (access string, refresh string, err error)
}

// Validator verifies access tokens.
type Validator interface {
	Validate(token string, ignoreExpiry bool) jwt.Result
}

// UserSource is the directory subset rotation needs.
type UserSource interface {
	FindByID(ctx context.Context, id string) (*identity.User, error)
	GetRoles(ctx context.Context, userID string) ([]identity.Role, error)
}

// Config holds the lifetimes applied to every pair.
type Config struct {
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	Now             func() time.Time
}

// Pair is a freshly issued access/refresh credential pair.
type Pair struct {
	UserID           string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Claims           claims.Set
}

// Manager issues and rotates refresh credentials.
type Manager struct {
	config    Config
	issuer    Issuer
	validator Validator
	users     UserSource
	store     identity.RefreshStateStore
}

// NewManager wires a Manager. All collaborators are required.
func NewManager(cfg Config, issuer Issuer, validator Validator, users UserSource, store identity.RefreshStateStore) (*Manager, error) {
	if cfg.AccessLifetime <= 0 {
		return nil, errors.New("refresh: access lifetime must be > 0")
	}
	if cfg.RefreshLifetime <= 0 {
		return nil, errors.New("refresh: refresh lifetime must be > 0")
	}
	if issuer == nil || validator == nil || users == nil || store == nil {
		return nil, errors.New("refresh: issuer, validator, users and store are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		config:    cfg,
		issuer:    issuer,
		validator: validator,
		users:     users,
		store:     store,
	}, nil
}

// IssueAndStore mints a pair for user and overwrites the user's stored refresh
// record unconditionally. Used by login.
func (m *Manager) IssueAndStore(ctx context.Context, user *identity.User, set claims.Set) (Pair, error) {
	pair, record, err := m.mint(set)
	if err != nil {
		return Pair{}, err
	}
	if err := m.store.UpdateRefreshState(ctx, user.ID, record); err != nil {
		return Pair{}, err
	}
	pair.UserID = user.ID
	return pair, nil
}

// Rotate exchanges a presented access token and refresh value for a new pair.
// Every failure is a *Failure matching ErrRejected.
func (m *Manager) Rotate(ctx context.Context, accessToken, refreshValue string) (Pair, error) {
	res := m.validator.Validate(accessToken, true)
	if !res.Valid {
		return Pair{}, &Failure{Kind: FailureInvalidAccess, Err: res.Err}
	}

	userID := res.Claims.Subject()
	if userID == "" {
		return Pair{}, &Failure{Kind: FailureMissingSubject}
	}
	if _, err := internal.DecodeRefreshValue(refreshValue); err != nil {
		return Pair{}, &Failure{Kind: FailureRefreshMalformed, UserID: userID, Err: err}
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return Pair{}, &Failure{Kind: FailureUserNotFound, UserID: userID, Err: err}
		}
		return Pair{}, &Failure{Kind: FailureStore, UserID: userID, Err: err}
	}

	roles, err := m.users.GetRoles(ctx, user.ID)
	if err != nil {
		return Pair{}, &Failure{Kind: FailureRoles, UserID: userID, Err: err}
	}
	set, err := claims.Build(*user, roles)
	if err != nil {
		return Pair{}, &Failure{Kind: FailureClaims, UserID: userID, Err: err}
	}

	pair, next, err := m.mint(set)
	if err != nil {
		return Pair{}, &Failure{Kind: FailureIssue, UserID: userID, Err: err}
	}

	if err := m.store.SwapRefreshState(ctx, user.ID, refreshValue, next, m.config.Now()); err != nil {
		return Pair{}, &Failure{Kind: swapFailureKind(err), UserID: userID, Err: err}
	}

	pair.UserID = user.ID
	return pair, nil
}

func (m *Manager) mint(set claims.Set) (Pair, identity.RefreshRecord, error) {
	now := m.config.Now()
	access, refresh, err := m.issuer.Issue(set, m.config.AccessLifetime)
	if err != nil {
		return Pair{}, identity.RefreshRecord{}, err
	}
	record := identity.RefreshRecord{
		Value:     refresh,
		ExpiresAt: now.Add(m.config.RefreshLifetime),
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(m.config.AccessLifetime),
		RefreshExpiresAt: record.ExpiresAt,
		Claims:           set,
	}, record, nil
}

func swapFailureKind(err error) FailureKind {
	switch {
	case errors.Is(err, identity.ErrRefreshNotFound):
		return FailureRefreshMissing
	case errors.Is(err, identity.ErrRefreshExpired):
		return FailureRefreshExpired
	case errors.Is(err, identity.ErrRefreshMismatch):
		return FailureRefreshMismatch
	case errors.Is(err, identity.ErrUserNotFound):
		return FailureUserNotFound
	default:
		return FailureStore
	}
}
