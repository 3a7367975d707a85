package permission

import "errors"

// ErrForbidden is returned by Check when no presented role satisfies the
// requirement.
var ErrForbidden = errors.New("permission: required role not held")

// Policy allows a caller that holds at least one of Required. An empty
// Required allows every authenticated caller.
type Policy struct {
	Name     string
	Required []string
}

// Allows reports whether presented satisfies p.
func (p Policy) Allows(presented []string) bool {
	if len(p.Required) == 0 {
		return true
	}
	for _, want := range p.Required {
		for _, got := range presented {
			if got == want {
				return true
			}
		}
	}
	return false
}

// Check returns ErrForbidden unless presented holds one of required.
func Check(required, presented []string) error {
	if (Policy{Required: required}).Allows(presented) {
		return nil
	}
	return ErrForbidden
}
