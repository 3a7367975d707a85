package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/identityauth/claims"
	"github.com/MrEthical07/identityauth/internal"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultClockSkew is the tolerance applied to both ends of the validity window.
const DefaultClockSkew = 5 * time.Minute

var (
	// ErrMissingSecret is returned by NewManager when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt: signing secret is required")
	// ErrMissingIssuer is returned by NewManager when no issuer is configured.
	ErrMissingIssuer = errors.New("jwt: issuer is required")
	// ErrMissingAudience is returned by NewManager when no audience is configured.
	ErrMissingAudience = errors.New("jwt: audience is required")
	// ErrUnsupportedClaims is returned by Issue for claim sets it cannot round-trip.
	ErrUnsupportedClaims = errors.New("jwt: unsupported claim set")
	// ErrInvalidLifetime is returned by Issue for non-positive lifetimes.
	ErrInvalidLifetime = errors.New("jwt: lifetime must be > 0")
)

// Config is fixed at construction and never mutated afterwards.
type Config struct {
	Secret    []byte
	Issuer    string
	Audience  string
	// ClockSkew of zero selects DefaultClockSkew.
	ClockSkew time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager signs claim sets into HS256 access tokens and validates them.
// It is safe for concurrent use.
type Manager struct {
	config Config
}

// AccessClaims is the JSON body of an access token.
type AccessClaims struct {
	UniqueName string   `json:"unique_name"`
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Role       []string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Result is the outcome of Validate. Err explains why Valid is false.
type Result struct {
	Valid     bool
	Claims    claims.Set
	ExpiresAt time.Time
	Err       error
}

// NewManager validates cfg and returns a Manager. A missing secret is a
// configuration fault and must stop startup.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" {
		return nil, ErrMissingIssuer
	}
	if cfg.Audience == "" {
		return nil, ErrMissingAudience
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	if cfg.ClockSkew < 0 || cfg.ClockSkew > time.Hour {
		return nil, errors.New("jwt: invalid clock skew configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg}, nil
}

// Issue signs set into an access token valid from now until now+lifetime and
// independently mints a fresh opaque refresh value. It has no side effects.
func (m *Manager) Issue(set claims.Set, lifetime time.Duration) (string, string, error) {
	if lifetime <= 0 {
		return "", "", ErrInvalidLifetime
	}
	body, err := toAccessClaims(set)
	if err != nil {
		return "", "", err
	}

	now := m.config.Now()
	body.Issuer = m.config.Issuer
	body.Audience = jwt.ClaimStrings{m.config.Audience}
	body.NotBefore = jwt.NewNumericDate(now)
	body.IssuedAt = jwt.NewNumericDate(now)
	body.ExpiresAt = jwt.NewNumericDate(now.Add(lifetime))

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString(m.config.Secret)
	if err != nil {
		return "", "", err
	}

	refresh, err := internal.NewRefreshValue()
	if err != nil {
		return "", "", fmt.Errorf("jwt: refresh value: %w", err)
	}

	return access, refresh, nil
}

// Validate verifies tokenStr. Signature, algorithm, issuer, audience and the
// presence of exp are always checked. Unless ignoreExpiry is set, the current
// time must also fall within [nbf, exp] widened by the clock skew.
//
// ignoreExpiry only identifies whose refresh credential is being exchanged;
// a token accepted that way is not proof of current authorization.
func (m *Manager) Validate(tokenStr string, ignoreExpiry bool) Result {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
	}
	if ignoreExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		options = append(options,
			jwt.WithIssuer(m.config.Issuer),
			jwt.WithAudience(m.config.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(m.config.ClockSkew),
			jwt.WithTimeFunc(m.config.Now),
		)
	}

	body := &AccessClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, body, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return Result{Err: err}
	}
	if !token.Valid {
		return Result{Err: jwt.ErrTokenInvalidClaims}
	}

	if ignoreExpiry {
		if err := m.checkIdentity(body); err != nil {
			return Result{Err: err}
		}
	}

	return Result{
		Valid:     true,
		Claims:    fromAccessClaims(body),
		ExpiresAt: body.ExpiresAt.Time,
	}
}

// checkIdentity repeats the non-temporal checks the parser skips when claims
// validation is disabled.
func (m *Manager) checkIdentity(body *AccessClaims) error {
	if body.Issuer != m.config.Issuer {
		return jwt.ErrTokenInvalidIssuer
	}
	audOK := false
	for _, aud := range body.Audience {
		if aud == m.config.Audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return jwt.ErrTokenInvalidAudience
	}
	if body.ExpiresAt == nil {
		return jwt.ErrTokenRequiredClaimMissing
	}
	return nil
}

func toAccessClaims(set claims.Set) (*AccessClaims, error) {
	body := &AccessClaims{}
	seen := make(map[string]bool, 5)
	for _, c := range set {
		if c.Type != claims.TypeRole {
			if seen[c.Type] {
				return nil, fmt.Errorf("%w: duplicate %q claim", ErrUnsupportedClaims, c.Type)
			}
			seen[c.Type] = true
		}
		switch c.Type {
		case claims.TypeSubject:
			body.Subject = c.Value
		case claims.TypeName:
			body.UniqueName = c.Value
		case claims.TypeEmail:
			body.Email = c.Value
		case claims.TypeGivenName:
			body.GivenName = c.Value
		case claims.TypeSurname:
			body.FamilyName = c.Value
		case claims.TypeRole:
			body.Role = append(body.Role, c.Value)
		default:
			return nil, fmt.Errorf("%w: claim type %q", ErrUnsupportedClaims, c.Type)
		}
	}
	if !set.Equal(fromAccessClaims(body)) {
		return nil, fmt.Errorf("%w: claims are not in canonical order", ErrUnsupportedClaims)
	}
	return body, nil
}

func fromAccessClaims(body *AccessClaims) claims.Set {
	return claims.New(body.Subject, body.UniqueName, body.Email, body.GivenName, body.FamilyName, body.Role)
}
