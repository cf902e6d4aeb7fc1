package gorbac

import (
	"context"
	"errors"
	"log"
	"time"
)

// Signup creates an account, opens its first session and queues the
// verification mail. Mail delivery is best effort here: a failed send
// is logged but does not fail the signup, the account can request a
// fresh verification mail later.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" ||
		req.Password == "" || req.PasswordConfirm == "" {
		e.metrics.Inc(MetricSignupFailure)
		e.emitAudit(ctx, auditSignup, false, "", ErrMissingFields, nil)
		return nil, ErrMissingFields
	}
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		e.metrics.Inc(MetricSignupFailure)
		e.emitAudit(ctx, auditSignup, false, "", ErrEmailInvalid, nil)
		return nil, ErrEmailInvalid
	}
	if err := e.validateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		e.metrics.Inc(MetricSignupFailure)
		e.emitAudit(ctx, auditSignup, false, "", err, nil)
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.metrics.Inc(MetricSignupFailure)
		e.emitAudit(ctx, auditSignup, false, "", err, nil)
		return nil, err
	}

	verifyToken, verifyDigest, err := newEphemeralToken(e.cfg.Verification.TokenBytes)
	if err != nil {
		e.metrics.Inc(MetricSignupFailure)
		e.emitAudit(ctx, auditSignup, false, "", err, nil)
		return nil, err
	}

	now := e.now()
	user, err := e.store.Create(ctx, &User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		Picture:   req.Picture,
		Role:      RoleUser,
		Active:    true,
		// Backdated one second so the first tokens are issued
		// strictly after the change stamp.
		PasswordHash:      hash,
		PasswordChangedAt: now.Add(-time.Second),
		VerifyEmailDigest: verifyDigest,
		CreatedAt:         now,
	})
	if err != nil {
		e.metrics.Inc(MetricSignupFailure)
		e.emitAudit(ctx, auditSignup, false, "", err, nil)
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if err := e.sendVerifyMail(ctx, user.Email, verifyToken); err != nil {
		log.Printf("gorbac: signup verification mail for %s: %v", user.ID, err)
	}

	auth, err := e.issueTokens(ctx, user)
	if err != nil {
		e.metrics.Inc(MetricSignupFailure)
		e.emitAudit(ctx, auditSignup, false, user.ID, err, nil)
		return nil, err
	}

	e.metrics.Inc(MetricSignupSuccess)
	e.emitAudit(ctx, auditSignup, true, user.ID, nil, nil)
	return auth, nil
}

func (e *Engine) sendVerifyMail(ctx context.Context, to, token string) error {
	return e.mailer.Send(ctx, Message{
		To:      to,
		Subject: "Verify your email address",
		Body:    "Confirm your email address by opening: " + mailLink(e.cfg.Links.VerifyEmail, token),
	})
}
