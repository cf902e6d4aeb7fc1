package gorbac

import (
	"context"
	"errors"
	"log"

	"github.com/MrEthical07/goRBAC/session"
)

// Refresh exchanges a refresh token for a fresh pair. The presented
// token must verify against the stored argon2 digest, and the swap to
// the new digest is a compare-and-swap in the store, so two concurrent
// refreshes of the same token yield exactly one winner; the loser gets
// ErrRefreshConflict. The session id is preserved and its registry TTL
// extended.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	if _, err := e.sessions.Get(ctx, claims.SessionID); err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditRefresh, false, claims.UserID, ErrSessionNotFound, nil)
			return nil, ErrSessionNotFound
		}
		e.emitAudit(ctx, auditRefresh, false, claims.UserID, err, nil)
		return nil, err
	}

	user, err := e.store.FindByID(ctx, claims.UserID, IncludeRefreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, claims.UserID, err, nil)
		return nil, err
	}
	if user.Blocked {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, ErrUserBlocked, nil)
		return nil, ErrUserBlocked
	}
	if user.RefreshTokenHash == "" {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	ok, err := e.hasher.Verify(user.RefreshTokenHash, refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, err, nil)
		return nil, err
	}
	if !ok {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	access, err := e.tokens.CreateAccess(user.ID, claims.SessionID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, err, nil)
		return nil, err
	}
	next, err := e.tokens.CreateRefresh(user.ID, claims.SessionID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, err, nil)
		return nil, err
	}
	nextHash, err := e.hasher.Hash(next)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, err, nil)
		return nil, err
	}

	if err := e.store.RotateRefreshHash(ctx, user.ID, user.RefreshTokenHash, nextHash); err != nil {
		if errors.Is(err, ErrRefreshConflict) {
			e.metrics.Inc(MetricRefreshConflict)
			e.emitAudit(ctx, auditRefresh, false, user.ID, ErrRefreshConflict, nil)
			return nil, ErrRefreshConflict
		}
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefresh, false, user.ID, err, nil)
		return nil, err
	}

	// The rotation is committed; failing now would hand the client a
	// pair it can never use. The registry extension is best effort: a
	// missed Touch only shortens the session, never resurrects a
	// revoked one.
	if err := e.sessions.Touch(ctx, claims.SessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		log.Printf("gorbac: session touch after refresh: %v", err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRefresh, true, user.ID, nil, nil)
	return &AuthResult{
		User:      sanitizeUser(user),
		Tokens:    TokenPair{AccessToken: access, RefreshToken: next},
		SessionID: claims.SessionID,
	}, nil
}
