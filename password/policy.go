package password

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Policy lists the complexity rules a new password must satisfy.
type Policy struct {
	MinLength              int  `yaml:"min_length"`
	RequireDigit           bool `yaml:"require_digit"`
	RequireLowercase       bool `yaml:"require_lowercase"`
	RequireUppercase       bool `yaml:"require_uppercase"`
	RequireNonAlphanumeric bool `yaml:"require_non_alphanumeric"`
	RequiredUniqueChars    int  `yaml:"required_unique_chars"`
}

// DefaultPolicy requires eight characters including a digit, a lowercase
// letter, an uppercase letter and a symbol.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:              8,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
		RequiredUniqueChars:    1,
	}
}

// Validate returns one description per rule pw breaks, or nil.
func (p Policy) Validate(pw string) []string {
	var (
		problems                      []string
		digit, lower, upper, nonAlnum bool
	)
	unique := make(map[rune]struct{}, len(pw))
	for _, r := range pw {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			nonAlnum = true
		}
		unique[r] = struct{}{}
	}

	if utf8.RuneCountInString(pw) < p.MinLength {
		problems = append(problems, fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength))
	}
	if p.RequireNonAlphanumeric && !nonAlnum {
		problems = append(problems, "Passwords must have at least one non alphanumeric character.")
	}
	if p.RequireDigit && !digit {
		problems = append(problems, "Passwords must have at least one digit ('0'-'9').")
	}
	if p.RequireLowercase && !lower {
		problems = append(problems, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if p.RequireUppercase && !upper {
		problems = append(problems, "Passwords must have at least one uppercase ('A'-'Z').")
	}
	if p.RequiredUniqueChars > 1 && len(unique) < p.RequiredUniqueChars {
		problems = append(problems, fmt.Sprintf("Passwords must use at least %d different characters.", p.RequiredUniqueChars))
	}
	return problems
}
