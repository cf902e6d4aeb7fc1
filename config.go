package gorbac

import (
	"bytes"
	"errors"
	"net/http"
	"time"
)

/* ==================== TOKENS ==================== */

// TokenConfig holds the signing secrets and lifetimes for the three
// JWT classes. The secrets must be distinct so a token of one class
// can never validate as another.
type TokenConfig struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	LoginLinkSecret []byte

	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	LoginLinkTTL time.Duration

	Issuer string
}

/* ==================== PASSWORDS ==================== */

// PasswordConfig tunes the argon2id hasher and the password policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
}

/* ==================== TOTP ==================== */

// TOTPConfig tunes the time-based one-time-password verifier and the
// pending enrollment window.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period time.Duration
	Skew   int

	EnrollmentTTL time.Duration
}

/* ==================== EPHEMERAL TOKENS ==================== */

// ResetConfig tunes password reset tokens.
type ResetConfig struct {
	TokenBytes int
	TTL        time.Duration
}

// VerificationConfig tunes email verification tokens. Verification
// tokens do not expire.
type VerificationConfig struct {
	TokenBytes int
}

/* ==================== SESSIONS ==================== */

// SessionConfig tunes the Redis session registry.
type SessionConfig struct {
	KeyPrefix string
}

/* ==================== COOKIES ==================== */

// CookieConfig shapes the helper cookies the engine can emit for
// browser transports.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	TTL         time.Duration
	Path        string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
}

/* ==================== MAIL LINKS ==================== */

// LinkConfig holds the base URLs the engine appends tokens to when
// composing mail. Empty bases produce mail containing the bare token.
type LinkConfig struct {
	LoginLink     string
	PasswordReset string
	VerifyEmail   string
}

/* ==================== OBSERVABILITY ==================== */

// AuditConfig tunes the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig tunes the in-process metrics registry.
type MetricsConfig struct {
	Enabled                bool
	EnableLatencyHistogram bool
}

/* ==================== ROOT ==================== */

// Config is the full engine configuration. Start from DefaultConfig
// and override what the deployment needs; Build validates the result.
type Config struct {
	Token        TokenConfig
	Password     PasswordConfig
	TOTP         TOTPConfig
	Reset        ResetConfig
	Verification VerificationConfig
	Session      SessionConfig
	Cookie       CookieConfig
	Links        LinkConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// DefaultConfig returns a Config with production-oriented defaults.
// Signing secrets are intentionally absent and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   30 * 24 * time.Hour,
			LoginLinkTTL: 10 * time.Minute,
			Issuer:       "gorbac",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		TOTP: TOTPConfig{
			Issuer:        "gorbac",
			Digits:        6,
			Period:        30 * time.Second,
			Skew:          0,
			EnrollmentTTL: 10 * time.Minute,
		},
		Reset: ResetConfig{
			TokenBytes: 32,
			TTL:        10 * time.Minute,
		},
		Verification: VerificationConfig{
			TokenBytes: 28,
		},
		Session: SessionConfig{
			KeyPrefix: "gr",
		},
		Cookie: CookieConfig{
			AccessName:  "accessToken",
			RefreshName: "refreshToken",
			TTL:         90 * 24 * time.Hour,
			Path:        "/",
			Secure:      true,
			SameSite:    http.SameSiteLaxMode,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                true,
			EnableLatencyHistogram: false,
		},
	}
}

// Validate checks the configuration for values that would weaken the
// engine or break token verification.
func (c *Config) Validate() error {
	if len(c.Token.AccessSecret) < 32 {
		return errors.New("gorbac: token access secret must be at least 32 bytes")
	}
	if len(c.Token.RefreshSecret) < 32 {
		return errors.New("gorbac: token refresh secret must be at least 32 bytes")
	}
	if len(c.Token.LoginLinkSecret) < 32 {
		return errors.New("gorbac: token login-link secret must be at least 32 bytes")
	}
	if bytes.Equal(c.Token.AccessSecret, c.Token.RefreshSecret) ||
		bytes.Equal(c.Token.AccessSecret, c.Token.LoginLinkSecret) ||
		bytes.Equal(c.Token.RefreshSecret, c.Token.LoginLinkSecret) {
		return errors.New("gorbac: token class secrets must be distinct")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.LoginLinkTTL <= 0 {
		return errors.New("gorbac: token lifetimes must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("gorbac: access lifetime must be shorter than refresh lifetime")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("gorbac: argon2 memory below safe floor")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("gorbac: argon2 time and parallelism must be at least 1")
	}
	if c.Password.SaltLength < 8 || c.Password.KeyLength < 16 {
		return errors.New("gorbac: argon2 salt or key length below safe floor")
	}
	if c.Password.MinLength < 8 {
		return errors.New("gorbac: password minimum length must be at least 8")
	}

	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("gorbac: totp digits must be between 6 and 8")
	}
	if c.TOTP.Period < 15*time.Second {
		return errors.New("gorbac: totp period too short")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("gorbac: totp skew must be between 0 and 2")
	}
	if c.TOTP.EnrollmentTTL <= 0 {
		return errors.New("gorbac: totp enrollment window must be positive")
	}

	if c.Reset.TokenBytes < 28 {
		return errors.New("gorbac: reset token entropy below safe floor")
	}
	if c.Reset.TTL <= 0 {
		return errors.New("gorbac: reset token lifetime must be positive")
	}
	if c.Verification.TokenBytes < 28 {
		return errors.New("gorbac: verification token entropy below safe floor")
	}

	if c.Session.KeyPrefix == "" {
		return errors.New("gorbac: session key prefix required")
	}

	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("gorbac: audit buffer size must be at least 1")
	}
	return nil
}
