package flows

import (
	"github.com/MrEthical07/identityauth/claims"
	"github.com/MrEthical07/identityauth/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureNotReady
	ValidateFailureEmpty
	ValidateFailureUnauthorized
)

// ValidateResult returns either the claim set or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  claims.Set
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Validate func(string, bool) jwt.Result
}

// RunValidate checks an access token with the time window enforced.
func RunValidate(tokenStr string, deps ValidateDeps) ValidateResult {
	if deps.Validate == nil {
		return ValidateResult{Failure: ValidateFailureNotReady}
	}
	if tokenStr == "" {
		return ValidateResult{Failure: ValidateFailureEmpty}
	}
	res := deps.Validate(tokenStr, false)
	if !res.Valid {
		return ValidateResult{Failure: ValidateFailureUnauthorized, Err: res.Err}
	}
	return ValidateResult{Failure: ValidateFailureNone, Claims: res.Claims}
}
