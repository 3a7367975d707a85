package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/identityauth/identity"
)

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureNotReady
	RegisterFailureValidation
	RegisterFailureDuplicate
	RegisterFailureRole
	RegisterFailureBackend
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// RegisterResult carries the created user or failure metadata. Problems is
// set for validation and duplicate failures.
type RegisterResult struct {
	Failure  RegisterFailureKind
	Err      error
	Problems []string
	User     *identity.User
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	DefaultRole identity.Role

	Create    func(context.Context, identity.Profile, string) (*identity.User, error)
	AddToRole func(context.Context, string, identity.Role) error
}

// RunRegister creates a user and grants the default role. It never issues
// credentials.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	if deps.Create == nil || deps.AddToRole == nil {
		return RegisterResult{Failure: RegisterFailureNotReady}
	}
	role := deps.DefaultRole
	if role == "" {
		role = identity.RoleUser
	}

	profile := identity.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	user, err := deps.Create(ctx, profile, req.Password)
	if err != nil {
		var ve *identity.ValidationError
		if errors.As(err, &ve) {
			kind := RegisterFailureValidation
			if isDuplicate(ve.Problems, req.Email) {
				kind = RegisterFailureDuplicate
			}
			return RegisterResult{Failure: kind, Err: err, Problems: ve.Problems}
		}
		return RegisterResult{Failure: RegisterFailureBackend, Err: err}
	}

	if err := deps.AddToRole(ctx, user.ID, role); err != nil {
		return RegisterResult{Failure: RegisterFailureRole, Err: err, User: user}
	}
	return RegisterResult{Failure: RegisterFailureNone, User: user}
}

func isDuplicate(problems []string, email string) bool {
	return len(problems) == 1 && problems[0] == identity.DuplicateEmail(strings.TrimSpace(email))
}
