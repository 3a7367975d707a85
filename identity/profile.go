package identity

import (
	"fmt"
	"net/mail"
	"strings"
)

// NormalizeProfile trims surrounding whitespace from every field.
func NormalizeProfile(p Profile) Profile {
	return Profile{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Email:     strings.TrimSpace(p.Email),
	}
}

// ValidateProfile returns one description per field-level problem in p.
// The last name is optional.
func ValidateProfile(p Profile) []string {
	var problems []string
	if strings.TrimSpace(p.FirstName) == "" {
		problems = append(problems, "First name is required.")
	}
	email := strings.TrimSpace(p.Email)
	switch {
	case email == "":
		problems = append(problems, "Email is required.")
	case !validEmail(email):
		problems = append(problems, fmt.Sprintf("Email '%s' is invalid.", email))
	}
	return problems
}

// DuplicateEmail is the problem description for an email already in use.
func DuplicateEmail(email string) string {
	return fmt.Sprintf("Email '%s' is already taken.", email)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject display-name forms like "Alice <a@b.c>".
	return addr.Address == email && strings.Contains(email, "@")
}
