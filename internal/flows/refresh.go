package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/identityauth/refresh"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNotReady
	RefreshFailureEmptyInput
	RefreshFailureRejected
	RefreshFailureReuse
	RefreshFailureBackend
)

// RefreshResult carries either the issued pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Reason  string
	Err     error
	UserID  string
	Pair    refresh.Pair
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Rotate func(context.Context, string, string) (refresh.Pair, error)
}

// RunRefresh exchanges a live refresh value for a new pair.
func RunRefresh(ctx context.Context, accessToken, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.Rotate == nil {
		return RefreshResult{Failure: RefreshFailureNotReady}
	}
	if accessToken == "" || refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureEmptyInput, Reason: "empty_input"}
	}

	pair, err := deps.Rotate(ctx, accessToken, refreshToken)
	if err == nil {
		return RefreshResult{
			Failure: RefreshFailureNone,
			UserID:  pair.UserID,
			Pair:    pair,
		}
	}

	var f *refresh.Failure
	if !errors.As(err, &f) {
		return RefreshResult{Failure: RefreshFailureBackend, Reason: "unknown", Err: err}
	}
	res := RefreshResult{
		Reason: f.Kind.String(),
		Err:    err,
		UserID: f.UserID,
	}
	switch f.Kind {
	case refresh.FailureRefreshMismatch:
		res.Failure = RefreshFailureReuse
	case refresh.FailureRoles, refresh.FailureIssue, refresh.FailureStore:
		res.Failure = RefreshFailureBackend
	default:
		res.Failure = RefreshFailureRejected
	}
	return res
}
