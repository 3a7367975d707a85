package identityauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/identityauth/identity"
	internalaudit "github.com/MrEthical07/identityauth/internal/audit"
	"github.com/MrEthical07/identityauth/internal/flows"
	"github.com/MrEthical07/identityauth/internal/rate"
	"github.com/MrEthical07/identityauth/jwt"
	"github.com/MrEthical07/identityauth/refresh"
	"github.com/MrEthical07/identityauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory    Directory
	refreshStore RefreshStateStore
	auditSink    AuditSink
	logger       *slog.Logger
	clock        func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithDirectory sets the user directory. Required.
func (b *Builder) WithDirectory(dir Directory) *Builder {
	b.directory = dir
	return b
}

// WithRedis enables the Redis refresh state store and, when
// Security.EnableLoginThrottle is set, the login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRefreshStateStore overrides where refresh records live. It wins over
// both WithRedis and the directory's own RefreshStateStore.
func (b *Builder) WithRefreshStateStore(store RefreshStateStore) *Builder {
	b.refreshStore = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for token timestamps, refresh expiry and audit
// records.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. Configuration
// faults are returned wrapped in ErrConfiguration.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, configError("directory required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, w := range cfg.Lint() {
		logger.Warn("identityauth: configuration warning", "code", w.Code, "detail", w.Message)
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret:    []byte(cfg.JWT.Secret),
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		ClockSkew: cfg.JWT.ClockSkew,
		Now:       clock,
	})
	if err != nil {
		return nil, configError("%v", err)
	}

	// -------- REFRESH STATE --------
	var sessionStore *session.Store
	store := b.refreshStore
	if store == nil && b.redis != nil {
		sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Retention)
		store = sessionStore
	}
	if store == nil {
		store = b.directory
	}

	rm, err := refresh.NewManager(refresh.Config{
		AccessLifetime:  cfg.JWT.AccessLifetime(),
		RefreshLifetime: cfg.JWT.RefreshLifetime(),
		Now:             clock,
	}, jm, jm, b.directory, store)
	if err != nil {
		return nil, configError("%v", err)
	}

	role, _ := identity.ParseRole(cfg.Account.DefaultRole)

	engine := &Engine{
		config:       cfg,
		directory:    b.directory,
		jwtManager:   jm,
		refresh:      rm,
		sessionStore: sessionStore,
		defaultRole:  role,
		logger:       logger,
		clock:        clock,
		metrics:      NewMetrics(cfg.Metrics),
	}

	if b.redis != nil && cfg.Security.EnableLoginThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LoginCooldown:    cfg.Security.LoginCooldown,
		})
	}

	if dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink); dispatcher != nil {
		engine.audit = dispatcher
	}

	engine.flows = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}
