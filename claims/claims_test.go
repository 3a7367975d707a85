package claims

import (
	"errors"
	"testing"

	"github.com/MrEthical07/identityauth/identity"
)

func TestBuildCanonicalOrderAndDedup(t *testing.T) {
	user := identity.User{
		ID:        "u-1",
		UserName:  "alice@example.com",
		Email:     "alice@example.com",
		FirstName: "Alice",
	}
	set, err := Build(user, []identity.Role{identity.RoleUser, identity.RoleAdministrator, identity.RoleUser})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := Set{
		{Type: TypeSubject, Value: "u-1"},
		{Type: TypeName, Value: "alice@example.com"},
		{Type: TypeEmail, Value: "alice@example.com"},
		{Type: TypeGivenName, Value: "Alice"},
		{Type: TypeSurname, Value: ""},
		{Type: TypeRole, Value: "User"},
		{Type: TypeRole, Value: "Administrator"},
	}
	if !set.Equal(want) {
		t.Fatalf("Build() = %#v, want %#v", set, want)
	}
	if set.Subject() != "u-1" || set.Name() != "alice@example.com" {
		t.Fatalf("unexpected accessors: %q %q", set.Subject(), set.Name())
	}
	if roles := set.Roles(); len(roles) != 2 {
		t.Fatalf("expected 2 distinct roles, got %v", roles)
	}
}

func TestBuildNoRoles(t *testing.T) {
	set, err := Build(identity.User{ID: "u", UserName: "n"}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(set) != 5 || set.Roles() != nil {
		t.Fatalf("expected only singular claims, got %#v", set)
	}
}

func TestBuildRejectsIncompleteIdentity(t *testing.T) {
	for _, u := range []identity.User{{UserName: "n"}, {ID: "u"}, {ID: " ", UserName: "n"}} {
		if _, err := Build(u, nil); !errors.Is(err, ErrIncompleteIdentity) {
			t.Fatalf("Build(%+v) err = %v, want ErrIncompleteIdentity", u, err)
		}
	}
}
