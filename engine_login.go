package gorbac

import (
	"context"
	"errors"
)

// Login verifies an email/password pair. Accounts without a confirmed
// second factor receive tokens directly; accounts with one receive a
// LoginResult flagging that TwoFactorLogin must follow. Unknown email
// and wrong password are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	if email == "" || pw == "" {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditLogin, false, "", ErrMissingCredentials, nil)
		return nil, ErrMissingCredentials
	}

	user, err := e.store.FindByEmail(ctx, normalizeEmail(email), IncludePassword)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditLogin, false, "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		e.emitAudit(ctx, auditLogin, false, "", err, nil)
		return nil, err
	}

	ok, err := e.hasher.Verify(user.PasswordHash, pw)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditLogin, false, user.ID, err, nil)
		return nil, err
	}
	if !ok {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditLogin, false, user.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}
	if user.Blocked {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditLogin, false, user.ID, ErrUserBlocked, nil)
		return nil, ErrUserBlocked
	}

	if user.HasTwoFactorAuth {
		e.metrics.Inc(MetricLoginTwoFactorRequired)
		e.emitAudit(ctx, auditLoginTwoFactor, true, user.ID, nil, nil)
		return &LoginResult{TwoFactorRequired: true, UserID: user.ID}, nil
	}

	auth, err := e.issueTokens(ctx, user)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditLogin, false, user.ID, err, nil)
		return nil, err
	}
	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLogin, true, user.ID, nil, nil)
	return &LoginResult{Auth: auth, UserID: user.ID}, nil
}

// TwoFactorLogin completes a login that Login flagged as requiring a
// second factor. The code is checked against the account's confirmed
// TOTP secret.
func (e *Engine) TwoFactorLogin(ctx context.Context, userID, code string) (*AuthResult, error) {
	if userID == "" || code == "" {
		e.metrics.Inc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditTwoFactorLogin, false, userID, ErrMissingFields, nil)
		return nil, ErrMissingFields
	}

	user, err := e.store.FindByID(ctx, userID, IncludeTwoFactorSecret)
	if err != nil {
		e.metrics.Inc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditTwoFactorLogin, false, userID, err, nil)
		return nil, err
	}
	if !user.HasTwoFactorAuth || user.TwoFactorSecret == "" {
		e.metrics.Inc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditTwoFactorLogin, false, userID, ErrTwoFactorNotEnabled, nil)
		return nil, ErrTwoFactorNotEnabled
	}
	if user.Blocked {
		e.metrics.Inc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditTwoFactorLogin, false, userID, ErrUserBlocked, nil)
		return nil, ErrUserBlocked
	}

	ok, err := e.totp.VerifyCode(user.TwoFactorSecret, code, e.now())
	if err != nil {
		e.metrics.Inc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditTwoFactorLogin, false, userID, err, nil)
		return nil, err
	}
	if !ok {
		e.metrics.Inc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditTwoFactorLogin, false, userID, ErrTwoFactorCode, nil)
		return nil, ErrTwoFactorCode
	}

	auth, err := e.issueTokens(ctx, user)
	if err != nil {
		e.metrics.Inc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditTwoFactorLogin, false, userID, err, nil)
		return nil, err
	}
	e.metrics.Inc(MetricTwoFactorLoginSuccess)
	e.emitAudit(ctx, auditTwoFactorLogin, true, userID, nil, nil)
	return auth, nil
}

// PasswordlessLogin mails a short-lived login link to email. A mail
// delivery failure propagates to the caller because the mail is the
// whole point of the operation.
func (e *Engine) PasswordlessLogin(ctx context.Context, email string) error {
	if email == "" {
		e.emitAudit(ctx, auditPasswordlessSend, false, "", ErrMissingFields, nil)
		return ErrMissingFields
	}

	user, err := e.store.FindByEmail(ctx, normalizeEmail(email), 0)
	if err != nil {
		e.emitAudit(ctx, auditPasswordlessSend, false, "", err, nil)
		return err
	}
	if user.Blocked {
		e.emitAudit(ctx, auditPasswordlessSend, false, user.ID, ErrUserBlocked, nil)
		return ErrUserBlocked
	}

	token, err := e.tokens.CreateLoginLink(user.ID)
	if err != nil {
		e.emitAudit(ctx, auditPasswordlessSend, false, user.ID, err, nil)
		return err
	}
	err = e.mailer.Send(ctx, Message{
		To:      user.Email,
		Subject: "Your login link",
		Body:    "Sign in by opening: " + mailLink(e.cfg.Links.LoginLink, token) + "\nThe link expires in " + e.cfg.Token.LoginLinkTTL.String() + ".",
	})
	if err != nil {
		e.emitAudit(ctx, auditPasswordlessSend, false, user.ID, err, nil)
		return err
	}

	e.metrics.Inc(MetricPasswordlessSent)
	e.emitAudit(ctx, auditPasswordlessSend, true, user.ID, nil, nil)
	return nil
}

// VerifyPasswordlessLogin exchanges a mailed login-link token for a
// session. The second factor is not consulted: possession of the
// mailbox is the proof.
func (e *Engine) VerifyPasswordlessLogin(ctx context.Context, token string) (*AuthResult, error) {
	claims, err := e.tokens.ParseLoginLink(token)
	if err != nil {
		e.metrics.Inc(MetricPasswordlessLoginFailure)
		e.emitAudit(ctx, auditPasswordlessLogin, false, "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	user, err := e.store.FindByID(ctx, claims.UserID, 0)
	if err != nil {
		e.metrics.Inc(MetricPasswordlessLoginFailure)
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditPasswordlessLogin, false, claims.UserID, ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		}
		e.emitAudit(ctx, auditPasswordlessLogin, false, claims.UserID, err, nil)
		return nil, err
	}
	if user.Blocked {
		e.metrics.Inc(MetricPasswordlessLoginFailure)
		e.emitAudit(ctx, auditPasswordlessLogin, false, user.ID, ErrUserBlocked, nil)
		return nil, ErrUserBlocked
	}

	auth, err := e.issueTokens(ctx, user)
	if err != nil {
		e.metrics.Inc(MetricPasswordlessLoginFailure)
		e.emitAudit(ctx, auditPasswordlessLogin, false, user.ID, err, nil)
		return nil, err
	}
	e.metrics.Inc(MetricPasswordlessLoginSuccess)
	e.emitAudit(ctx, auditPasswordlessLogin, true, user.ID, nil, nil)
	return auth, nil
}
