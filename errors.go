package identityauth

import (
	"errors"

	"github.com/MrEthical07/identityauth/identity"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown username or a
	// wrong password. The two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredRefresh is returned by Refresh for every rejection.
	ErrInvalidOrExpiredRefresh = errors.New("invalid or expired refresh token")
	// ErrValidation matches every *identity.ValidationError.
	ErrValidation = identity.ErrValidation
	// ErrConfiguration wraps construction-time configuration faults.
	ErrConfiguration = errors.New("invalid configuration")

	ErrEngineNotReady       = errors.New("engine not initialized")
	ErrLoginRateLimited     = errors.New("login rate limited")
	ErrDirectoryUnavailable = errors.New("identity directory unavailable")
	// ErrUnauthorized is returned by ValidateAccess for a missing or invalid
	// access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden reports a valid caller lacking a required role.
	ErrForbidden = errors.New("forbidden")
	// ErrUserNotFound is returned by FindUser.
	ErrUserNotFound = identity.ErrUserNotFound
)

// ErrRegistrationDisabled is returned by Register when
// Account.RegistrationEnabled is false.
var ErrRegistrationDisabled = errors.New("registration disabled")
