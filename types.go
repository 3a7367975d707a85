package identityauth

import (
	"time"

	"github.com/MrEthical07/identityauth/claims"
	"github.com/MrEthical07/identityauth/identity"
)

type (
	User              = identity.User
	Role              = identity.Role
	Profile           = identity.Profile
	RefreshRecord     = identity.RefreshRecord
	ValidationError   = identity.ValidationError
	Directory         = identity.Directory
	RefreshStateStore = identity.RefreshStateStore
)

const (
	RoleAdministrator = identity.RoleAdministrator
	RoleUser          = identity.RoleUser
	RoleReader        = identity.RoleReader
)

// LoginResult is the credential pair returned by Login and Refresh.
type LoginResult struct {
	UserID           string    `json:"-"`
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// RegisterRequest is the registration input. The email doubles as the
// username.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// RegisterResult reports the outcome of Register. Errors holds one
// human-readable description per validation problem when Success is false.
type RegisterResult struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
	UserID  string   `json:"-"`
}

// AuthResult is the identity carried by a valid access token.
type AuthResult struct {
	UserID   string
	UserName string
	Roles    []string
	Claims   claims.Set
}

// HasRole reports whether role appears among the token's roles.
func (r *AuthResult) HasRole(role Role) bool {
	if r == nil {
		return false
	}
	for _, got := range r.Roles {
		if got == string(role) {
			return true
		}
	}
	return false
}

// UserView is the caller-safe projection of a directory user returned by
// FindUser. It never carries refresh state.
type UserView struct {
	ID        string   `json:"id"`
	UserName  string   `json:"userName"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
}
