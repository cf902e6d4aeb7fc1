package gorbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goRBAC/jwt"
	"github.com/MrEthical07/goRBAC/password"
	"github.com/MrEthical07/goRBAC/session"
)

// Engine is the authentication and authorization core. Construct it
// with the Builder; the zero value is not usable. All methods are safe
// for concurrent use.
type Engine struct {
	cfg      Config
	store    CredentialStore
	mailer   Mailer
	sessions *session.Store
	enroll   *enrollmentStore
	tokens   *jwt.Manager
	hasher   *password.Hasher
	totp     *totpManager
	audit    *auditDispatcher
	metrics  *metricRegistry
	now      func() time.Time
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e.audit != nil {
		e.audit.Close()
	}
}

// Metrics returns a point-in-time copy of the engine counters.
func (e *Engine) Metrics() MetricsSnapshot {
	snap := e.metrics.snapshot()
	if e.audit != nil {
		snap.AuditDropped = e.audit.Dropped()
	}
	return snap
}

/* ==================== TOKEN ISSUANCE ==================== */

// issueTokens opens a new session for user: registers a session id,
// mints the access/refresh pair bound to it and persists the argon2
// digest of the refresh token for rotation checks.
func (e *Engine) issueTokens(ctx context.Context, user *User) (*AuthResult, error) {
	sid := uuid.NewString()

	access, err := e.tokens.CreateAccess(user.ID, sid)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.CreateRefresh(user.ID, sid)
	if err != nil {
		return nil, err
	}
	refreshHash, err := e.hasher.Hash(refresh)
	if err != nil {
		return nil, err
	}

	updated, err := e.store.Update(ctx, user.ID, UserPatch{RefreshTokenHash: &refreshHash})
	if err != nil {
		return nil, fmt.Errorf("gorbac: persist refresh digest: %w", err)
	}
	if err := e.sessions.Save(ctx, sid, user.ID); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:      sanitizeUser(updated),
		Tokens:    TokenPair{AccessToken: access, RefreshToken: refresh},
		SessionID: sid,
	}, nil
}

/* ==================== GUARD PATH ==================== */

// Authenticate resolves an access token to its live account. It fails
// when the token is invalid or expired, the session was revoked, the
// account is gone, blocked or deactivated, or the password changed at
// or after token issue.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	start := e.now()
	defer func() { e.metrics.Observe(e.now().Sub(start)) }()

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt == nil {
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, ErrTokenInvalid
	}
	if _, err := e.sessions.Get(ctx, claims.SessionID); err != nil {
		e.metrics.Inc(MetricAuthenticateFailure)
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	user, err := e.store.FindByID(ctx, claims.UserID, 0)
	if err != nil {
		e.metrics.Inc(MetricAuthenticateFailure)
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if user.Blocked {
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, ErrUserBlocked
	}
	if changedAfterIssue(user.PasswordChangedAt, claims.IssuedAt.Time) {
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, ErrPasswordRotated
	}

	e.metrics.Inc(MetricAuthenticateSuccess)
	return sanitizeUser(user), nil
}

// LookupUser returns the sanitized account for id.
func (e *Engine) LookupUser(ctx context.Context, id string) (*User, error) {
	user, err := e.store.FindByID(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

/* ==================== LOGOUT ==================== */

// Logout revokes the session carried by accessToken. Tokens minted for
// that session stop authenticating immediately; other sessions of the
// same account are untouched.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.emitAudit(ctx, auditLogout, false, "", ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}
	if err := e.sessions.Delete(ctx, claims.SessionID, claims.UserID); err != nil {
		e.emitAudit(ctx, auditLogout, false, claims.UserID, err, nil)
		return err
	}
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditLogout, true, claims.UserID, nil, nil)
	return nil
}

// LogoutEverywhere revokes every session of userID and clears the
// stored refresh digest, so neither access nor refresh tokens survive.
func (e *Engine) LogoutEverywhere(ctx context.Context, userID string) error {
	n, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditLogoutAll, false, userID, err, nil)
		return err
	}
	empty := ""
	if _, err := e.store.Update(ctx, userID, UserPatch{RefreshTokenHash: &empty}); err != nil {
		e.emitAudit(ctx, auditLogoutAll, false, userID, err, nil)
		return err
	}
	e.metrics.Inc(MetricLogoutAll)
	e.emitAudit(ctx, auditLogoutAll, true, userID, nil, map[string]string{
		"sessions": strconv.Itoa(n),
	})
	return nil
}

/* ==================== HELPERS ==================== */

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID string, err error, meta map[string]string) {
	if e.audit == nil {
		return
	}
	if ip := clientIP(ctx); ip != "" {
		if meta == nil {
			meta = map[string]string{}
		}
		meta["ip"] = ip
	}
	e.audit.Emit(AuditEvent{
		Time:    e.now().UTC(),
		Type:    eventType,
		Success: success,
		UserID:  userID,
		Error:   auditErrorCode(err),
		Meta:    meta,
	})
}

// auditErrorCode classifies err for audit records without leaking the
// full error chain.
func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrMissingFields):
		return "missing_input"
	case errors.Is(err, ErrEmailInvalid):
		return "email_invalid"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserBlocked):
		return "blocked"
	case errors.Is(err, ErrPasswordPolicy), errors.Is(err, ErrPasswordMismatch):
		return "password_policy"
	case errors.Is(err, ErrPasswordRotated):
		return "password_rotated"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrRefreshInvalid):
		return "refresh_invalid"
	case errors.Is(err, ErrRefreshConflict):
		return "refresh_conflict"
	case errors.Is(err, ErrSessionNotFound):
		return "session_revoked"
	case errors.Is(err, ErrTwoFactorNotEnabled):
		return "two_factor_not_enabled"
	case errors.Is(err, ErrTwoFactorCode):
		return "two_factor_code"
	case errors.Is(err, ErrEnrollmentNotFound):
		return "enrollment_not_found"
	case errors.Is(err, ErrResetTokenInvalid):
		return "reset_token_invalid"
	case errors.Is(err, ErrVerifyTokenInvalid):
		return "verify_token_invalid"
	case errors.Is(err, ErrRoleInvalid):
		return "role_invalid"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	default:
		return "internal"
	}
}

// changedAfterIssue reports whether a password change at changedAt
// invalidates a token issued at issuedAt. A change in the same instant
// invalidates the token; writers of the change stamp backdate it one
// second so their own freshly minted tokens survive.
func changedAfterIssue(changedAt, issuedAt time.Time) bool {
	if changedAt.IsZero() {
		return false
	}
	return !issuedAt.After(changedAt)
}

func (e *Engine) validateNewPassword(pw, confirm string) error {
	if len(pw) < e.cfg.Password.MinLength {
		return ErrPasswordPolicy
	}
	if pw != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.IndexByte(domain, '@') != -1 {
		return false
	}
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// sanitizeUser returns a copy of u with all secret material cleared.
func sanitizeUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	c.RefreshTokenHash = ""
	c.TwoFactorSecret = ""
	c.ResetPasswordDigest = ""
	c.ResetPasswordExpires = time.Time{}
	c.VerifyEmailDigest = ""
	return &c
}

// mailLink joins a configured base URL with a token. An empty base
// yields the bare token.
func mailLink(base, token string) string {
	if base == "" {
		return token
	}
	if strings.HasSuffix(base, "/") {
		return base + token
	}
	return base + "/" + token
}
