// Package claims assembles the ordered identity-claim set embedded in access
// tokens. It has no side effects and depends only on package identity.
package claims

import (
	"errors"
	"strings"

	"github.com/MrEthical07/identityauth/identity"
)

// Claim types, named after their JWT member names.
const (
	TypeSubject   = "sub"
	TypeName      = "unique_name"
	TypeEmail     = "email"
	TypeGivenName = "given_name"
	TypeSurname   = "family_name"
	TypeRole      = "role"
)

// ErrIncompleteIdentity is returned by Build for a user without id or username.
var ErrIncompleteIdentity = errors.New("claims: identity lacks id or username")

// Claim is a single typed assertion about the subject.
type Claim struct {
	Type  string
	Value string
}

// Set is an ordered claim collection. Sets produced by this package always
// start with the five singular claims followed by distinct role claims.
type Set []Claim

// Build returns the claim set for user holding roles.
func Build(user identity.User, roles []identity.Role) (Set, error) {
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.UserName) == "" {
		return nil, ErrIncompleteIdentity
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return New(user.ID, user.UserName, user.Email, user.FirstName, user.LastName, names), nil
}

// New lays out a claim set in canonical order. Empty and repeated roles are dropped.
func New(subject, name, email, givenName, surname string, roles []string) Set {
	set := make(Set, 0, 5+len(roles))
	set = append(set,
		Claim{Type: TypeSubject, Value: subject},
		Claim{Type: TypeName, Value: name},
		Claim{Type: TypeEmail, Value: email},
		Claim{Type: TypeGivenName, Value: givenName},
		Claim{Type: TypeSurname, Value: surname},
	)
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		set = append(set, Claim{Type: TypeRole, Value: r})
	}
	return set
}

// Value returns the first claim value of type typ.
func (s Set) Value(typ string) (string, bool) {
	for _, c := range s {
		if c.Type == typ {
			return c.Value, true
		}
	}
	return "", false
}

// Subject returns the subject id, or "" when absent.
func (s Set) Subject() string {
	v, _ := s.Value(TypeSubject)
	return v
}

// Name returns the username claim, or "".
func (s Set) Name() string {
	v, _ := s.Value(TypeName)
	return v
}

// Roles returns every role claim value in order.
func (s Set) Roles() []string {
	var out []string
	for _, c := range s {
		if c.Type == TypeRole {
			out = append(out, c.Value)
		}
	}
	return out
}

// Equal reports whether s and other hold the same claims in the same order.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}
