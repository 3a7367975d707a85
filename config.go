package identityauth

import (
	"fmt"
	"time"

	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/password"
)

// Config is the immutable engine configuration handed to [Builder.WithConfig].
type Config struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Account  AccountConfig  `yaml:"account"`
	Password PasswordConfig `yaml:"password"`
	Security SecurityConfig `yaml:"security"`
	Session  SessionConfig  `yaml:"session"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token signing and the two credential lifetimes.
// Lifetimes are whole minutes.
type JWTConfig struct {
	Secret              string        `yaml:"secret"`
	Issuer              string        `yaml:"issuer"`
	Audience            string        `yaml:"audience"`
	AccessTokenMinutes  int           `yaml:"access_token_minutes"`
	RefreshTokenMinutes int           `yaml:"refresh_token_minutes"`
	// ClockSkew widens both ends of the access-token window. It must be
	// positive; DefaultConfig sets 5m.
	ClockSkew           time.Duration `yaml:"clock_skew"`
}

// AccessLifetime returns AccessTokenMinutes as a duration.
func (c JWTConfig) AccessLifetime() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// RefreshLifetime returns RefreshTokenMinutes as a duration.
func (c JWTConfig) RefreshLifetime() time.Duration {
	return time.Duration(c.RefreshTokenMinutes) * time.Minute
}

// AccountConfig controls registration.
type AccountConfig struct {
	RegistrationEnabled bool   `yaml:"registration_enabled"`
	DefaultRole         string `yaml:"default_role"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries the Argon2id parameters and the complexity policy
// applied at registration.
type PasswordConfig struct {
	Memory           uint32          `yaml:"memory_kib"`
	Time             uint32          `yaml:"time"`
	Parallelism      uint8           `yaml:"parallelism"`
	SaltLength       uint32          `yaml:"salt_length"`
	KeyLength        uint32          `yaml:"key_length"`
	MaxPasswordBytes int             `yaml:"max_password_bytes"`
	Policy           password.Policy `yaml:"policy"`
}

// NewHasher builds the Argon2id hasher described by cfg.
func NewHasher(cfg PasswordConfig) (*password.Argon2, error) {
	h, err := password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxPasswordBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return h, nil
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls the Redis login throttle. It only takes effect
// when the Builder has a Redis client.
type SecurityConfig struct {
	EnableLoginThrottle bool          `yaml:"enable_login_throttle"`
	EnableIPThrottle    bool          `yaml:"enable_ip_throttle"`
	MaxLoginAttempts    int           `yaml:"max_login_attempts"`
	LoginCooldown       time.Duration `yaml:"login_cooldown"`
}

// SessionConfig controls the Redis refresh state store created by
// [Builder.WithRedis].
type SessionConfig struct {
	RedisPrefix string        `yaml:"redis_prefix"`
	Retention   time.Duration `yaml:"retention"`
}

type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns the preset every loader starts from. The signing
// secret, issuer and audience are deliberately empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTokenMinutes:  15,
			RefreshTokenMinutes: 24 * 60,
			ClockSkew:           5 * time.Minute,
		},
		Account: AccountConfig{
			RegistrationEnabled: true,
			DefaultRole:         string(identity.RoleUser),
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			Policy:           password.DefaultPolicy(),
		},
		Security: SecurityConfig{
			EnableLoginThrottle: true,
			EnableIPThrottle:    false,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "iar",
			Retention:   24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...)
}

// Validate reports the first configuration fault, wrapped in ErrConfiguration.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.Secret == "" {
		return configError("JWT Secret is required")
	}
	if c.JWT.Issuer == "" {
		return configError("JWT Issuer is required")
	}
	if c.JWT.Audience == "" {
		return configError("JWT Audience is required")
	}
	if c.JWT.AccessTokenMinutes <= 0 {
		return configError("JWT AccessTokenMinutes must be > 0")
	}
	if c.JWT.RefreshTokenMinutes <= 0 {
		return configError("JWT RefreshTokenMinutes must be > 0")
	}
	if c.JWT.ClockSkew <= 0 || c.JWT.ClockSkew > time.Hour {
		return configError("JWT ClockSkew must be within (0, 1h]")
	}

	// Account
	if _, ok := identity.ParseRole(c.Account.DefaultRole); !ok {
		return configError("Account DefaultRole %q is not a known role", c.Account.DefaultRole)
	}

	// Password
	if c.Password.Memory == 0 || c.Password.Time == 0 || c.Password.Parallelism == 0 {
		return configError("Password Argon2 Memory, Time and Parallelism must be > 0")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return configError("Password SaltLength and KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return configError("Password MaxPasswordBytes must be >= 0")
	}
	if c.Password.Policy.MinLength < 0 || c.Password.Policy.RequiredUniqueChars < 0 {
		return configError("Password Policy lengths must be >= 0")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return configError("Security MaxLoginAttempts must be > 0 when the login throttle is enabled")
		}
		if c.Security.LoginCooldown <= 0 {
			return configError("Security LoginCooldown must be > 0 when the login throttle is enabled")
		}
	}

	if c.Session.Retention < 0 {
		return configError("Session Retention must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult lists every warning Lint found.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that pass Validate but weaken the deployment.
func (c *Config) Lint() LintResult {
	var out LintResult
	add := func(code, format string, args ...any) {
		out = append(out, LintWarning{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if n := len(c.JWT.Secret); n > 0 && n < 32 {
		add("secret_short", "JWT Secret is %d bytes; HS256 wants at least 32", n)
	}
	if c.JWT.AccessTokenMinutes > 60 {
		add("access_ttl_long", "access tokens live %d minutes and cannot be revoked", c.JWT.AccessTokenMinutes)
	}
	if c.JWT.RefreshTokenMinutes > 30*24*60 {
		add("refresh_ttl_long", "refresh values live longer than 30 days")
	}
	if c.JWT.RefreshTokenMinutes > 0 && c.JWT.RefreshTokenMinutes < c.JWT.AccessTokenMinutes {
		add("refresh_shorter_than_access", "refresh values expire before the access tokens they renew")
	}
	if c.JWT.ClockSkew > 5*time.Minute {
		add("clock_skew_large", "clock skew %s widens every token's validity window", c.JWT.ClockSkew)
	}
	if !c.Security.EnableLoginThrottle {
		add("login_throttle_disabled", "failed logins are not throttled")
	}
	if c.Password.Policy.MinLength < 8 {
		add("password_policy_weak", "passwords may be shorter than 8 characters")
	}
	return out
}
