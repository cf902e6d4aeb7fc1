package gorbac

import "context"

// AssignRole moves the account to a new role. Role checks on the
// acting caller belong to the transport guards; this method only
// validates the target role.
func (e *Engine) AssignRole(ctx context.Context, userID string, role Role) (*User, error) {
	if !role.Valid() {
		e.emitAudit(ctx, auditRoleAssign, false, userID, ErrRoleInvalid, nil)
		return nil, ErrRoleInvalid
	}
	user, err := e.store.Update(ctx, userID, UserPatch{Role: &role})
	if err != nil {
		e.emitAudit(ctx, auditRoleAssign, false, userID, err, nil)
		return nil, err
	}
	e.emitAudit(ctx, auditRoleAssign, true, userID, nil, map[string]string{"role": string(role)})
	return sanitizeUser(user), nil
}

// SetBlocked raises or clears the administrative block flag. Blocking
// also revokes every live session so the account drops immediately.
func (e *Engine) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	if _, err := e.store.Update(ctx, userID, UserPatch{Blocked: &blocked}); err != nil {
		e.emitAudit(ctx, auditBlockSet, false, userID, err, nil)
		return err
	}
	if blocked {
		if _, err := e.sessions.DeleteAllForUser(ctx, userID); err != nil {
			e.emitAudit(ctx, auditBlockSet, false, userID, err, nil)
			return err
		}
	}
	meta := map[string]string{"blocked": "false"}
	if blocked {
		meta["blocked"] = "true"
	}
	e.emitAudit(ctx, auditBlockSet, true, userID, nil, meta)
	return nil
}

// Deactivate soft-deletes the account: the active flag drops, default
// store lookups stop returning it and every live session is revoked.
// The record itself is retained by the store.
func (e *Engine) Deactivate(ctx context.Context, userID string) error {
	inactive, empty := false, ""
	if _, err := e.store.Update(ctx, userID, UserPatch{
		Active:           &inactive,
		RefreshTokenHash: &empty,
	}); err != nil {
		e.emitAudit(ctx, auditDeactivate, false, userID, err, nil)
		return err
	}
	if _, err := e.sessions.DeleteAllForUser(ctx, userID); err != nil {
		e.emitAudit(ctx, auditDeactivate, false, userID, err, nil)
		return err
	}
	e.emitAudit(ctx, auditDeactivate, true, userID, nil, nil)
	return nil
}
