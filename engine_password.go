package gorbac

import (
	"context"
	"errors"
	"log"
	"time"
)

// ForgotPassword issues a password reset token to the account's
// mailbox. Only the SHA-256 digest of the token is stored, with a
// short expiry. Unknown emails are reported to the caller; the engine
// leaves enumeration masking to the transport layer.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		e.emitAudit(ctx, auditPasswordForgot, false, "", ErrMissingFields, nil)
		return ErrMissingFields
	}

	user, err := e.store.FindByEmail(ctx, normalizeEmail(email), 0)
	if err != nil {
		e.emitAudit(ctx, auditPasswordForgot, false, "", err, nil)
		return err
	}

	token, digest, err := newEphemeralToken(e.cfg.Reset.TokenBytes)
	if err != nil {
		e.emitAudit(ctx, auditPasswordForgot, false, user.ID, err, nil)
		return err
	}
	expires := e.now().Add(e.cfg.Reset.TTL)
	if _, err := e.store.Update(ctx, user.ID, UserPatch{
		ResetPasswordDigest:  &digest,
		ResetPasswordExpires: &expires,
	}); err != nil {
		e.emitAudit(ctx, auditPasswordForgot, false, user.ID, err, nil)
		return err
	}

	err = e.mailer.Send(ctx, Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body: "Reset your password by opening: " + mailLink(e.cfg.Links.PasswordReset, token) +
			"\nThe link expires in " + e.cfg.Reset.TTL.String() + ". If you did not request this, ignore this mail.",
	})
	if err != nil {
		// Roll the token back so a mail outage leaves no live reset
		// token behind.
		empty, zero := "", time.Time{}
		if _, rbErr := e.store.Update(ctx, user.ID, UserPatch{
			ResetPasswordDigest:  &empty,
			ResetPasswordExpires: &zero,
		}); rbErr != nil {
			log.Printf("gorbac: reset token rollback for %s: %v", user.ID, rbErr)
		}
		e.emitAudit(ctx, auditPasswordForgot, false, user.ID, err, nil)
		return err
	}

	e.metrics.Inc(MetricPasswordForgot)
	e.emitAudit(ctx, auditPasswordForgot, true, user.ID, nil, nil)
	return nil
}

// ResetPassword consumes a mailed reset token, sets the new password
// and opens a fresh session. All prior sessions are revoked and the
// token is single use.
func (e *Engine) ResetPassword(ctx context.Context, token, pw, confirm string) (*AuthResult, error) {
	if err := e.validateNewPassword(pw, confirm); err != nil {
		e.metrics.Inc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordReset, false, "", err, nil)
		return nil, err
	}

	user, err := e.store.FindByResetDigest(ctx, digestToken(token), e.now())
	if err != nil {
		e.metrics.Inc(MetricPasswordResetFailure)
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditPasswordReset, false, "", ErrResetTokenInvalid, nil)
			return nil, ErrResetTokenInvalid
		}
		e.emitAudit(ctx, auditPasswordReset, false, "", err, nil)
		return nil, err
	}

	auth, err := e.rotatePassword(ctx, user.ID, pw, UserPatch{})
	if err != nil {
		e.metrics.Inc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordReset, false, user.ID, err, nil)
		return nil, err
	}
	e.metrics.Inc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditPasswordReset, true, user.ID, nil, nil)
	return auth, nil
}

// UpdatePassword changes the password of an authenticated account
// after re-verifying the current one, then opens a fresh session. All
// prior sessions are revoked.
func (e *Engine) UpdatePassword(ctx context.Context, userID, current, pw, confirm string) (*AuthResult, error) {
	if userID == "" || current == "" {
		e.metrics.Inc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChange, false, userID, ErrMissingFields, nil)
		return nil, ErrMissingFields
	}
	if err := e.validateNewPassword(pw, confirm); err != nil {
		e.metrics.Inc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChange, false, userID, err, nil)
		return nil, err
	}

	user, err := e.store.FindByID(ctx, userID, IncludePassword)
	if err != nil {
		e.metrics.Inc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChange, false, userID, err, nil)
		return nil, err
	}
	ok, err := e.hasher.Verify(user.PasswordHash, current)
	if err != nil {
		e.metrics.Inc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChange, false, userID, err, nil)
		return nil, err
	}
	if !ok {
		e.metrics.Inc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChange, false, userID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	auth, err := e.rotatePassword(ctx, userID, pw, UserPatch{})
	if err != nil {
		e.metrics.Inc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditPasswordChange, false, userID, err, nil)
		return nil, err
	}
	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditPasswordChange, true, userID, nil, nil)
	return auth, nil
}

// rotatePassword persists a new password hash, clears any outstanding
// reset token, revokes every live session and opens a new one. The
// change stamp is backdated one second so the tokens minted here are
// issued strictly after it.
func (e *Engine) rotatePassword(ctx context.Context, userID, pw string, extra UserPatch) (*AuthResult, error) {
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return nil, err
	}
	changedAt := e.now().Add(-time.Second)
	empty, zero := "", time.Time{}
	patch := extra
	patch.PasswordHash = &hash
	patch.PasswordChangedAt = &changedAt
	patch.ResetPasswordDigest = &empty
	patch.ResetPasswordExpires = &zero

	user, err := e.store.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if _, err := e.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.issueTokens(ctx, user)
}
