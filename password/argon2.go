package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Config holds the argon2id parameters applied to new digests.
// Verification always uses the parameters embedded in the digest.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns interactive-login parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

var (
	// ErrInvalidDigest is returned when a stored digest cannot be
	// parsed as a PHC argon2id string.
	ErrInvalidDigest = errors.New("password: invalid argon2 digest")

	// ErrUnsupportedVariant is returned when the digest names an
	// argon2 variant other than argon2id.
	ErrUnsupportedVariant = errors.New("password: unsupported argon2 variant")
)

// Hasher derives and verifies argon2id digests. It is stateless apart
// from its parameters and safe for concurrent use.
type Hasher struct {
	cfg Config
}

// New returns a Hasher with the given parameters, or an error when
// they fall below the safe floor.
func New(cfg Config) (*Hasher, error) {
	if cfg.Memory < 8*1024 {
		return nil, errors.New("password: memory below 8 MiB floor")
	}
	if cfg.Time < 1 {
		return nil, errors.New("password: time cost must be at least 1")
	}
	if cfg.Parallelism < 1 {
		return nil, errors.New("password: parallelism must be at least 1")
	}
	if cfg.SaltLength < 8 {
		return nil, errors.New("password: salt length below 8 byte floor")
	}
	if cfg.KeyLength < 16 {
		return nil, errors.New("password: key length below 16 byte floor")
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash derives a PHC-formatted argon2id digest for secret.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt generation: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory, h.cfg.Time, h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches the PHC digest. Comparison is
// constant time over the derived key.
func (h *Hasher) Verify(digest, secret string) (bool, error) {
	params, salt, key, err := parsePHC(digest)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(secret), salt, params.Time, params.Memory, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

func parsePHC(digest string) (Config, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Config{}, nil, nil, ErrInvalidDigest
	}
	if parts[1] != "argon2id" {
		return Config{}, nil, nil, ErrUnsupportedVariant
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Config{}, nil, nil, ErrInvalidDigest
	}
	if version != argon2.Version {
		return Config{}, nil, nil, ErrInvalidDigest
	}

	var cfg Config
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &cfg.Memory, &cfg.Time, &cfg.Parallelism); err != nil {
		return Config{}, nil, nil, ErrInvalidDigest
	}
	if cfg.Memory == 0 || cfg.Time == 0 || cfg.Parallelism == 0 {
		return Config{}, nil, nil, ErrInvalidDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Config{}, nil, nil, ErrInvalidDigest
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Config{}, nil, nil, ErrInvalidDigest
	}
	if len(key) == 0 {
		return Config{}, nil, nil, ErrInvalidDigest
	}
	return cfg, salt, key, nil
}
