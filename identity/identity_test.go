package identity

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRefreshRecordCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := &RefreshRecord{Value: "abc", ExpiresAt: now.Add(time.Minute)}

	tests := []struct {
		name      string
		record    *RefreshRecord
		presented string
		want      error
	}{
		{name: "live match", record: live, presented: "abc", want: nil},
		{name: "nil record", record: nil, presented: "abc", want: ErrRefreshNotFound},
		{name: "empty value", record: &RefreshRecord{ExpiresAt: now.Add(time.Hour)}, presented: "", want: ErrRefreshNotFound},
		{name: "mismatch", record: live, presented: "abd", want: ErrRefreshMismatch},
		{name: "expired", record: &RefreshRecord{Value: "abc", ExpiresAt: now.Add(-time.Second)}, presented: "abc", want: ErrRefreshExpired},
		{name: "expiry equals now", record: &RefreshRecord{Value: "abc", ExpiresAt: now}, presented: "abc", want: ErrRefreshExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.record.Check(tc.presented, now); !errors.Is(err, tc.want) {
				t.Fatalf("Check() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("create: %w", &ValidationError{Problems: []string{"First name is required."}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 1 {
		t.Fatalf("expected one problem, got %#v", ve)
	}
}

func TestValidateProfile(t *testing.T) {
	if problems := ValidateProfile(Profile{FirstName: "Alice", Email: "alice@example.com"}); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}

	problems := ValidateProfile(Profile{Email: "Alice <alice@example.com>"})
	if len(problems) != 2 {
		t.Fatalf("expected first-name and email problems, got %v", problems)
	}

	problems = ValidateProfile(Profile{FirstName: "A"})
	if len(problems) != 1 || problems[0] != "Email is required." {
		t.Fatalf("unexpected problems: %v", problems)
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" administrator ")
	if !ok || r != RoleAdministrator {
		t.Fatalf("ParseRole = %q, %v", r, ok)
	}
	if _, ok := ParseRole("Owner"); ok {
		t.Fatal("unknown role must not parse")
	}
	if Role("Owner").Valid() {
		t.Fatal("unknown role must be invalid")
	}
}
