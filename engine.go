package identityauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/identityauth/identity"
	internalaudit "github.com/MrEthical07/identityauth/internal/audit"
	"github.com/MrEthical07/identityauth/internal/flows"
	"github.com/MrEthical07/identityauth/internal/rate"
	"github.com/MrEthical07/identityauth/jwt"
	"github.com/MrEthical07/identityauth/permission"
	"github.com/MrEthical07/identityauth/refresh"
	"github.com/MrEthical07/identityauth/session"
)

// Engine is the authentication service. It is safe for concurrent use once
// built and must not be reconfigured.
type Engine struct {
	config       Config
	directory    Directory
	jwtManager   *jwt.Manager
	refresh      *refresh.Manager
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	clock        func() time.Time
	defaultRole  identity.Role
	flows        flows.Service
}

// Close flushes pending audit events. The directory and Redis client belong
// to the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

// Config returns a copy of the configuration the Engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) flowDeps() flows.Deps {
	login := flows.LoginDeps{
		ClientIP:       ClientIPFromContext,
		VerifyPassword: e.directory.VerifyPassword,
		GetRoles:       e.directory.GetRoles,
		IssueAndStore:  e.refresh.IssueAndStore,
	}
	if e.rateLimiter != nil {
		login.Throttle = e.rateLimiter
	}
	return flows.Deps{
		Login:   login,
		Refresh: flows.RefreshDeps{Rotate: e.refresh.Rotate},
		Register: flows.RegisterDeps{
			DefaultRole: e.defaultRole,
			Create:      e.directory.Create,
			AddToRole:   e.directory.AddToRole,
		},
		Validate: flows.ValidateDeps{Validate: e.jwtManager.Validate},
	}
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

func toLoginResult(p refresh.Pair) LoginResult {
	return LoginResult{
		UserID:           p.UserID,
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// Login verifies username and password against the directory and issues a
// fresh access/refresh pair, replacing any refresh value the user held.
//
// An unknown username and a wrong password both return ErrInvalidCredentials.
// A throttled caller gets ErrLoginRateLimited; directory or store failures
// return ErrDirectoryUnavailable.
func (e *Engine) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, username, password)
	meta := map[string]string{"identifier": username}
	if res.Reason != "" {
		meta["reason"] = res.Reason
	}

	switch res.Failure {
	case flows.LoginFailureNone:
		if res.Err != nil {
			e.warn("identityauth: login throttle reset failed", "user_id", res.UserID, "error", res.Err)
		}
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, res.UserID, nil, meta)
		return toLoginResult(res.Pair), nil
	case flows.LoginFailureThrottled:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, res.UserID, ErrLoginRateLimited, meta)
		return LoginResult{}, ErrLoginRateLimited
	case flows.LoginFailureRejected:
		if res.Err != nil {
			e.warn("identityauth: login throttle increment failed", "error", res.Err)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, res.UserID, ErrInvalidCredentials, meta)
		return LoginResult{}, ErrInvalidCredentials
	case flows.LoginFailureBackend:
		e.warn("identityauth: login backend failure", "reason", res.Reason, "error", res.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, res.UserID, ErrDirectoryUnavailable, meta)
		return LoginResult{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, res.Err)
	default:
		return LoginResult{}, ErrEngineNotReady
	}
}

// Refresh exchanges an access token, expired or not, and the refresh value
// issued with it for a new pair. The presented refresh value stops working
// on success. Roles are re-read from the directory, so the new access token
// reflects role changes made since the previous issue.
//
// Every rejection returns ErrInvalidOrExpiredRefresh.
func (e *Engine) Refresh(ctx context.Context, accessToken, refreshToken string) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, accessToken, refreshToken)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, res.UserID, nil, nil)
		return toLoginResult(res.Pair), nil
	case flows.RefreshFailureNotReady:
		return LoginResult{}, ErrEngineNotReady
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		e.warn("identityauth: superseded refresh value presented", "user_id", res.UserID)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, res.UserID, errRefreshReuse, nil)
	case flows.RefreshFailureBackend:
		e.metricInc(MetricRefreshFailure)
		e.warn("identityauth: refresh backend failure", "reason", res.Reason, "error", res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, res.UserID, ErrDirectoryUnavailable, map[string]string{"reason": res.Reason})
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, res.UserID, ErrInvalidOrExpiredRefresh, map[string]string{"reason": res.Reason})
	}
	return LoginResult{}, ErrInvalidOrExpiredRefresh
}

// Register creates a user whose username is the email address and grants the
// configured default role. It never issues credentials.
//
// Input problems, including a taken email, are reported in
// RegisterResult.Errors with a nil error. A non-nil error means the
// directory failed.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	if !e.ready() {
		return RegisterResult{}, ErrEngineNotReady
	}
	if !e.config.Account.RegistrationEnabled {
		return RegisterResult{}, ErrRegistrationDisabled
	}

	res := e.flows.Register(ctx, flows.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	meta := map[string]string{"email": req.Email}

	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, res.User.ID, nil, meta)
		return RegisterResult{Success: true, Errors: []string{}, UserID: res.User.ID}, nil
	case flows.RegisterFailureValidation:
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, "", ErrValidation, meta)
		return RegisterResult{Errors: res.Problems}, nil
	case flows.RegisterFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, "", errDuplicateAccount, meta)
		return RegisterResult{Errors: res.Problems}, nil
	case flows.RegisterFailureRole:
		e.metricInc(MetricRegisterFailure)
		e.warn("identityauth: default role grant failed", "user_id", res.User.ID, "role", e.defaultRole, "error", res.Err)
		e.emitAudit(ctx, auditEventRegisterFailure, res.User.ID, ErrDirectoryUnavailable, meta)
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, res.Err)
	case flows.RegisterFailureBackend:
		e.metricInc(MetricRegisterFailure)
		e.warn("identityauth: registration backend failure", "error", res.Err)
		e.emitAudit(ctx, auditEventRegisterFailure, "", ErrDirectoryUnavailable, meta)
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, res.Err)
	default:
		return RegisterResult{}, ErrEngineNotReady
	}
}

// ValidateAccess verifies an access token's signature, issuer, audience and
// validity window (with clock skew). It touches no store.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := e.flows.Validate(tokenStr)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.ValidateFailureNone:
		e.metricInc(MetricValidateSuccess)
		return &AuthResult{
			UserID:   res.Claims.Subject(),
			UserName: res.Claims.Name(),
			Roles:    res.Claims.Roles(),
			Claims:   res.Claims,
		}, nil
	case flows.ValidateFailureNotReady:
		return nil, ErrEngineNotReady
	case flows.ValidateFailureEmpty:
		e.metricInc(MetricValidateFailure)
		return nil, ErrUnauthorized
	default:
		e.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, res.Err)
	}
}

// Authorize validates tokenStr and requires at least one of roles. With no
// roles any valid token is accepted.
func (e *Engine) Authorize(ctx context.Context, tokenStr string, roles ...Role) (*AuthResult, error) {
	auth, err := e.ValidateAccess(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	required := make([]string, 0, len(roles))
	for _, r := range roles {
		required = append(required, string(r))
	}
	if err := permission.Check(required, auth.Roles); err != nil {
		return auth, ErrForbidden
	}
	return auth, nil
}

// FindUser looks a user up by username and returns its public profile and
// current roles.
func (e *Engine) FindUser(ctx context.Context, username string) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	u, err := e.directory.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	roles, err := e.directory.GetRoles(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	view := &UserView{
		ID:        u.ID,
		UserName:  u.UserName,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     make([]string, 0, len(roles)),
	}
	for _, r := range roles {
		view.Roles = append(view.Roles, string(r))
	}
	return view, nil
}

// Ping reports the round-trip time of the Redis refresh store. It returns
// zero when refresh state lives elsewhere.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessionStore == nil {
		return 0, nil
	}
	return e.sessionStore.Ping(ctx)
}
