package gorbac

import (
	"errors"
	"net/http"
)

// Sentinel errors returned by Engine operations. Callers should match
// them with errors.Is; HTTPStatus maps each to a canonical status code.
var (
	// ErrEngineNotReady is returned when the Builder was given an
	// incomplete dependency set.
	ErrEngineNotReady = errors.New("gorbac: engine not fully configured")

	// ErrMissingCredentials is returned when a login request omits the
	// email or the password.
	ErrMissingCredentials = errors.New("gorbac: email and password required")

	// ErrMissingFields is returned when a signup or update request
	// omits a required field.
	ErrMissingFields = errors.New("gorbac: required fields missing")

	// ErrEmailInvalid is returned when an email address fails the
	// structural check.
	ErrEmailInvalid = errors.New("gorbac: email address invalid")

	// ErrEmailTaken is returned by CredentialStore.Create when the
	// normalized email already belongs to another account.
	ErrEmailTaken = errors.New("gorbac: email already registered")

	// ErrInvalidCredentials is returned when the email is unknown or
	// the password does not match. The two cases are deliberately
	// indistinguishable.
	ErrInvalidCredentials = errors.New("gorbac: invalid email or password")

	// ErrUserNotFound is returned when an operation targets an account
	// that does not exist or has been deactivated.
	ErrUserNotFound = errors.New("gorbac: user not found")

	// ErrUserBlocked is returned when the targeted account carries the
	// administrative block flag.
	ErrUserBlocked = errors.New("gorbac: account blocked")

	// ErrPasswordPolicy is returned when a new password is shorter
	// than the configured minimum.
	ErrPasswordPolicy = errors.New("gorbac: password does not meet the minimum length")

	// ErrPasswordMismatch is returned when the password confirmation
	// does not equal the password.
	ErrPasswordMismatch = errors.New("gorbac: password confirmation does not match")

	// ErrPasswordRotated is returned when a token was issued at or
	// before the account's last password change.
	ErrPasswordRotated = errors.New("gorbac: token predates password change")

	// ErrTokenInvalid is returned when an access or login-link token
	// fails signature, class or expiry checks.
	ErrTokenInvalid = errors.New("gorbac: token invalid or expired")

	// ErrRefreshInvalid is returned when a refresh token fails
	// verification against the stored rotation digest.
	ErrRefreshInvalid = errors.New("gorbac: refresh token invalid")

	// ErrRefreshConflict is returned when a concurrent rotation won
	// the compare-and-swap on the stored refresh digest.
	ErrRefreshConflict = errors.New("gorbac: refresh token already rotated")

	// ErrSessionNotFound is returned when the session referenced by a
	// token is absent from the registry, typically after logout.
	ErrSessionNotFound = errors.New("gorbac: session revoked or expired")

	// ErrTwoFactorNotEnabled is returned when a TOTP step is requested
	// for an account without a confirmed second factor.
	ErrTwoFactorNotEnabled = errors.New("gorbac: two-factor authentication not enabled")

	// ErrTwoFactorCode is returned when a TOTP code fails verification.
	ErrTwoFactorCode = errors.New("gorbac: two-factor code invalid")

	// ErrEnrollmentNotFound is returned when no pending two-factor
	// enrollment exists for the account, or it has expired.
	ErrEnrollmentNotFound = errors.New("gorbac: two-factor enrollment not found or expired")

	// ErrResetTokenInvalid is returned when a password reset token is
	// unknown or past its expiry.
	ErrResetTokenInvalid = errors.New("gorbac: reset token invalid or expired")

	// ErrVerifyTokenInvalid is returned when an email verification
	// token matches no account.
	ErrVerifyTokenInvalid = errors.New("gorbac: verification token invalid")

	// ErrRoleInvalid is returned when a role name is outside the known
	// set.
	ErrRoleInvalid = errors.New("gorbac: unknown role")

	// ErrPermissionDenied is returned by the authorization guards when
	// the acting account's role does not satisfy the requirement.
	ErrPermissionDenied = errors.New("gorbac: permission denied")
)

// HTTPStatus maps an Engine error to the status code a transport layer
// should answer with. Unrecognized errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrEmailInvalid),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrVerifyTokenInvalid),
		errors.Is(err, ErrEnrollmentNotFound),
		errors.Is(err, ErrRoleInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrPasswordRotated),
		errors.Is(err, ErrTwoFactorNotEnabled),
		errors.Is(err, ErrTwoFactorCode):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrUserBlocked):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrRefreshConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
