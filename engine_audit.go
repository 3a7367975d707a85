package identityauth

import (
	"context"
	"errors"
	"time"
)

// Audit event types.
const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventRegisterDuplicate    = "register_duplicate"
)

// Audit-only causes. Callers see ErrInvalidOrExpiredRefresh and a
// RegisterResult respectively.
var (
	errRefreshReuse     = errors.New("refresh value reused")
	errDuplicateAccount = errors.New("account already exists")
)

// auditCodes maps causes to the stable code stored in AuditEvent.Error.
// Order matters: the first match wins.
var auditCodes = []struct {
	cause error
	code  string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrLoginRateLimited, "rate_limited"},
	{errRefreshReuse, "refresh_reuse"},
	{ErrInvalidOrExpiredRefresh, "invalid_or_expired_refresh"},
	{errDuplicateAccount, "duplicate"},
	{ErrValidation, "validation"},
	{ErrUserNotFound, "user_not_found"},
	{ErrDirectoryUnavailable, "backend_unavailable"},
	{ErrEngineNotReady, "engine_not_ready"},
}

func auditCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range auditCodes {
		if errors.Is(err, c.cause) {
			return c.code
		}
	}
	return "internal_error"
}

// emitAudit records one outcome. A nil err marks success.
func (e *Engine) emitAudit(ctx context.Context, eventType, userID string, err error, meta map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        ClientIPFromContext(ctx),
		Success:   err == nil,
		Error:     auditCode(err),
		Metadata:  meta,
	})
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
