package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token fails signature,
	// structure or issuer checks.
	ErrTokenInvalid = errors.New("jwt: token invalid")

	// ErrTokenExpired is returned when a structurally valid token is
	// past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// Claims is the payload carried by every engine token. SessionID is
// empty on login-link tokens, which are minted before a session exists.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid,omitempty"`
	jwtlib.RegisteredClaims
}

// Config holds the signing material and lifetimes for the three token
// classes.
type Config struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	LoginLinkSecret []byte

	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	LoginLinkTTL time.Duration

	Issuer string

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// Manager mints and parses tokens. It is immutable after construction
// and safe for concurrent use.
type Manager struct {
	cfg Config
	now func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < 32 || len(cfg.RefreshSecret) < 32 || len(cfg.LoginLinkSecret) < 32 {
		return nil, errors.New("jwt: all class secrets must be at least 32 bytes")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) ||
		bytes.Equal(cfg.AccessSecret, cfg.LoginLinkSecret) ||
		bytes.Equal(cfg.RefreshSecret, cfg.LoginLinkSecret) {
		return nil, errors.New("jwt: class secrets must be distinct")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.LoginLinkTTL <= 0 {
		return nil, errors.New("jwt: token lifetimes must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{cfg: cfg, now: now}, nil
}

// CreateAccess mints a short-lived access token bound to a session.
func (m *Manager) CreateAccess(userID, sessionID string) (string, error) {
	return m.create(m.cfg.AccessSecret, m.cfg.AccessTTL, userID, sessionID)
}

// CreateRefresh mints a refresh token bound to the same session as its
// access counterpart.
func (m *Manager) CreateRefresh(userID, sessionID string) (string, error) {
	return m.create(m.cfg.RefreshSecret, m.cfg.RefreshTTL, userID, sessionID)
}

// CreateLoginLink mints a short-lived token for passwordless login
// mail. No session exists yet, so SessionID is empty.
func (m *Manager) CreateLoginLink(userID string) (string, error) {
	return m.create(m.cfg.LoginLinkSecret, m.cfg.LoginLinkTTL, userID, "")
}

// ParseAccess validates token as an access token and returns its
// claims.
func (m *Manager) ParseAccess(token string) (*Claims, error) {
	return m.parse(m.cfg.AccessSecret, token)
}

// ParseRefresh validates token as a refresh token and returns its
// claims.
func (m *Manager) ParseRefresh(token string) (*Claims, error) {
	return m.parse(m.cfg.RefreshSecret, token)
}

// ParseLoginLink validates token as a login-link token and returns its
// claims.
func (m *Manager) ParseLoginLink(token string) (*Claims, error) {
	return m.parse(m.cfg.LoginLinkSecret, token)
}

func (m *Manager) create(secret []byte, ttl time.Duration, userID, sessionID string) (string, error) {
	if userID == "" {
		return "", errors.New("jwt: user id required")
	}
	now := m.now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(secret []byte, token string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(m.now),
		jwtlib.WithIssuedAt(),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(m.cfg.Issuer))
	}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
