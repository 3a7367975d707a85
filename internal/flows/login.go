package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/identityauth/claims"
	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/internal/rate"
	"github.com/MrEthical07/identityauth/refresh"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureNotReady
	LoginFailureThrottled
	LoginFailureRejected
	LoginFailureBackend
)

// LoginResult carries the issued pair or failure metadata. UserID is set
// once the password has been verified.
type LoginResult struct {
	Failure LoginFailureKind
	Reason  string
	Err     error
	UserID  string
	Pair    refresh.Pair
}

// Throttle is the failed-attempt budget. A nil Throttle disables it.
type Throttle interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username, ip string) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Throttle Throttle
	ClientIP func(context.Context) string

	VerifyPassword func(context.Context, string, string) (*identity.User, error)
	GetRoles       func(context.Context, string) ([]identity.Role, error)
	IssueAndStore  func(context.Context, *identity.User, claims.Set) (refresh.Pair, error)
}

// RunLogin verifies credentials, resolves roles and issues a pair. Unknown
// users and wrong passwords are both LoginFailureRejected and both charge the
// throttle.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if deps.VerifyPassword == nil || deps.GetRoles == nil || deps.IssueAndStore == nil {
		return LoginResult{Failure: LoginFailureNotReady}
	}
	var ip string
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	if deps.Throttle != nil {
		if err := deps.Throttle.CheckLogin(ctx, username, ip); err != nil {
			return throttleFailure(err)
		}
	}

	reject := func(userID, reason string) LoginResult {
		res := LoginResult{Failure: LoginFailureRejected, Reason: reason, UserID: userID}
		if deps.Throttle == nil {
			return res
		}
		if err := deps.Throttle.IncrementLogin(ctx, username, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return LoginResult{Failure: LoginFailureThrottled, Reason: "budget_exhausted", UserID: userID}
			}
			res.Err = err
		}
		return res
	}

	if username == "" || password == "" {
		return reject("", "empty_credentials")
	}

	user, err := deps.VerifyPassword(ctx, username, password)
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		return reject("", "user_not_found")
	case errors.Is(err, identity.ErrInvalidPassword):
		return reject("", "password_mismatch")
	case err != nil:
		return LoginResult{Failure: LoginFailureBackend, Reason: "verify_failed", Err: err}
	}

	roles, err := deps.GetRoles(ctx, user.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureBackend, Reason: "roles_failed", Err: err, UserID: user.ID}
	}
	set, err := claims.Build(*user, roles)
	if err != nil {
		return reject(user.ID, "incomplete_identity")
	}
	pair, err := deps.IssueAndStore(ctx, user, set)
	if err != nil {
		return LoginResult{Failure: LoginFailureBackend, Reason: "issue_failed", Err: err, UserID: user.ID}
	}

	res := LoginResult{Failure: LoginFailureNone, UserID: user.ID, Pair: pair}
	if deps.Throttle != nil {
		// A failed reset leaves the counter to expire; the login stands.
		res.Err = deps.Throttle.ResetLogin(ctx, username, ip)
	}
	return res
}

func throttleFailure(err error) LoginResult {
	if errors.Is(err, rate.ErrRateLimited) {
		return LoginResult{Failure: LoginFailureThrottled, Reason: "budget_exhausted"}
	}
	return LoginResult{Failure: LoginFailureBackend, Reason: "throttle_unavailable", Err: err}
}
