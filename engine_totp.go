package gorbac

import (
	"context"
	"errors"
)

// BeginTwoFactorEnrollment generates a TOTP secret for the account and
// parks it in the pending store. The account record is untouched until
// the first code is confirmed, so an abandoned enrollment can never
// lock anyone out. Calling again replaces the pending secret.
func (e *Engine) BeginTwoFactorEnrollment(ctx context.Context, userID string) (*TwoFactorEnrollment, error) {
	user, err := e.store.FindByID(ctx, userID, 0)
	if err != nil {
		e.emitAudit(ctx, auditTwoFactorBegin, false, userID, err, nil)
		return nil, err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		e.emitAudit(ctx, auditTwoFactorBegin, false, userID, err, nil)
		return nil, err
	}
	if err := e.enroll.Save(ctx, userID, secret); err != nil {
		e.emitAudit(ctx, auditTwoFactorBegin, false, userID, err, nil)
		return nil, err
	}

	e.metrics.Inc(MetricEnrollBegin)
	e.emitAudit(ctx, auditTwoFactorBegin, true, userID, nil, nil)
	return &TwoFactorEnrollment{
		Secret:          secret,
		ProvisioningURI: e.totp.ProvisionURI(secret, user.Email),
	}, nil
}

// ConfirmTwoFactorEnrollment proves possession of the pending secret
// with a live code, persists the secret to the account and enables the
// second factor for future logins.
func (e *Engine) ConfirmTwoFactorEnrollment(ctx context.Context, userID, code string) error {
	secret, err := e.enroll.Get(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditTwoFactorConfirm, false, userID, ErrEnrollmentNotFound, nil)
		if errors.Is(err, errEnrollmentMissing) {
			return ErrEnrollmentNotFound
		}
		return err
	}

	ok, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil {
		e.emitAudit(ctx, auditTwoFactorConfirm, false, userID, err, nil)
		return err
	}
	if !ok {
		e.emitAudit(ctx, auditTwoFactorConfirm, false, userID, ErrTwoFactorCode, nil)
		return ErrTwoFactorCode
	}

	enabled := true
	if _, err := e.store.Update(ctx, userID, UserPatch{
		HasTwoFactorAuth: &enabled,
		TwoFactorSecret:  &secret,
	}); err != nil {
		e.emitAudit(ctx, auditTwoFactorConfirm, false, userID, err, nil)
		return err
	}
	if err := e.enroll.Delete(ctx, userID); err != nil {
		e.emitAudit(ctx, auditTwoFactorConfirm, false, userID, err, nil)
		return err
	}

	e.metrics.Inc(MetricEnrollConfirm)
	e.emitAudit(ctx, auditTwoFactorConfirm, true, userID, nil, nil)
	return nil
}

// DisableTwoFactor removes the confirmed second factor from the
// account and discards any pending enrollment.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID string) error {
	user, err := e.store.FindByID(ctx, userID, 0)
	if err != nil {
		e.emitAudit(ctx, auditTwoFactorDisable, false, userID, err, nil)
		return err
	}
	if !user.HasTwoFactorAuth {
		e.emitAudit(ctx, auditTwoFactorDisable, false, userID, ErrTwoFactorNotEnabled, nil)
		return ErrTwoFactorNotEnabled
	}

	disabled, empty := false, ""
	if _, err := e.store.Update(ctx, userID, UserPatch{
		HasTwoFactorAuth: &disabled,
		TwoFactorSecret:  &empty,
	}); err != nil {
		e.emitAudit(ctx, auditTwoFactorDisable, false, userID, err, nil)
		return err
	}
	if err := e.enroll.Delete(ctx, userID); err != nil {
		e.emitAudit(ctx, auditTwoFactorDisable, false, userID, err, nil)
		return err
	}

	e.metrics.Inc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditTwoFactorDisable, true, userID, nil, nil)
	return nil
}
