package gorbac

import (
	"context"
	"errors"
)

// SendVerificationEmail issues a fresh verification token for the
// account and mails it. Any previous token is superseded. Verification
// tokens have no expiry; they die when consumed or replaced.
func (e *Engine) SendVerificationEmail(ctx context.Context, userID string) error {
	user, err := e.store.FindByID(ctx, userID, 0)
	if err != nil {
		e.emitAudit(ctx, auditEmailVerifySend, false, userID, err, nil)
		return err
	}
	if user.EmailVerified {
		e.emitAudit(ctx, auditEmailVerifySend, true, userID, nil, map[string]string{"noop": "already_verified"})
		return nil
	}

	token, digest, err := newEphemeralToken(e.cfg.Verification.TokenBytes)
	if err != nil {
		e.emitAudit(ctx, auditEmailVerifySend, false, userID, err, nil)
		return err
	}
	if _, err := e.store.Update(ctx, userID, UserPatch{VerifyEmailDigest: &digest}); err != nil {
		e.emitAudit(ctx, auditEmailVerifySend, false, userID, err, nil)
		return err
	}
	if err := e.sendVerifyMail(ctx, user.Email, token); err != nil {
		e.emitAudit(ctx, auditEmailVerifySend, false, userID, err, nil)
		return err
	}

	e.metrics.Inc(MetricEmailVerifySent)
	e.emitAudit(ctx, auditEmailVerifySend, true, userID, nil, nil)
	return nil
}

// VerifyEmail consumes a mailed verification token and marks the
// account's email as verified.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		e.metrics.Inc(MetricEmailVerifyFailure)
		e.emitAudit(ctx, auditEmailVerify, false, "", ErrVerifyTokenInvalid, nil)
		return ErrVerifyTokenInvalid
	}

	user, err := e.store.FindByVerifyDigest(ctx, digestToken(token))
	if err != nil {
		e.metrics.Inc(MetricEmailVerifyFailure)
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEmailVerify, false, "", ErrVerifyTokenInvalid, nil)
			return ErrVerifyTokenInvalid
		}
		e.emitAudit(ctx, auditEmailVerify, false, "", err, nil)
		return err
	}

	verified, empty := true, ""
	if _, err := e.store.Update(ctx, user.ID, UserPatch{
		EmailVerified:     &verified,
		VerifyEmailDigest: &empty,
	}); err != nil {
		e.metrics.Inc(MetricEmailVerifyFailure)
		e.emitAudit(ctx, auditEmailVerify, false, user.ID, err, nil)
		return err
	}

	e.metrics.Inc(MetricEmailVerifySuccess)
	e.emitAudit(ctx, auditEmailVerify, true, user.ID, nil, nil)
	return nil
}

// ChangeEmail moves the account to a new address. The verified flag
// drops until the new address confirms the mailed token. An address
// already held by another account fails with ErrEmailTaken from the
// store, which owns the uniqueness check. The mail goes to the new
// address; a delivery failure is logged, the account can request
// another verification mail.
func (e *Engine) ChangeEmail(ctx context.Context, userID, newEmail string) (*User, error) {
	email := normalizeEmail(newEmail)
	if !validEmail(email) {
		e.emitAudit(ctx, auditEmailChange, false, userID, ErrEmailInvalid, nil)
		return nil, ErrEmailInvalid
	}

	token, digest, err := newEphemeralToken(e.cfg.Verification.TokenBytes)
	if err != nil {
		e.emitAudit(ctx, auditEmailChange, false, userID, err, nil)
		return nil, err
	}

	unverified := false
	user, err := e.store.Update(ctx, userID, UserPatch{
		Email:             &email,
		EmailVerified:     &unverified,
		VerifyEmailDigest: &digest,
	})
	if err != nil {
		e.emitAudit(ctx, auditEmailChange, false, userID, err, nil)
		return nil, err
	}

	if err := e.sendVerifyMail(ctx, email, token); err != nil {
		e.emitAudit(ctx, auditEmailChange, true, userID, nil, map[string]string{"mail": "failed"})
	} else {
		e.emitAudit(ctx, auditEmailChange, true, userID, nil, nil)
	}
	e.metrics.Inc(MetricEmailChange)
	return sanitizeUser(user), nil
}
