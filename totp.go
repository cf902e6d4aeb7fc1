package gorbac

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// totpManager implements RFC 6238 time-based one-time passwords with
// HMAC-SHA1, the variant authenticator apps expect.
type totpManager struct {
	issuer string
	digits int
	period time.Duration
	skew   int
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{
		issuer: cfg.Issuer,
		digits: cfg.Digits,
		period: cfg.Period,
		skew:   cfg.Skew,
	}
}

// GenerateSecret returns a fresh 20-byte secret in unpadded base32.
func (t *totpManager) GenerateSecret() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("gorbac: totp secret generation: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI an authenticator app enrolls
// from.
func (t *totpManager) ProvisionURI(secret, account string) string {
	label := url.PathEscape(t.issuer + ":" + account)
	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", t.issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", strconv.Itoa(t.digits))
	q.Set("period", strconv.Itoa(int(t.period/time.Second)))
	return "otpauth://totp/" + label + "?" + q.Encode()
}

// VerifyCode checks code against secret at now, tolerating the
// configured number of adjacent time steps.
func (t *totpManager) VerifyCode(secret, code string, now time.Time) (bool, error) {
	if len(code) != t.digits {
		return false, nil
	}
	key, err := b32.DecodeString(secret)
	if err != nil {
		return false, fmt.Errorf("gorbac: totp secret decode: %w", err)
	}
	counter := now.Unix() / int64(t.period/time.Second)
	match := false
	for offset := -t.skew; offset <= t.skew; offset++ {
		want := hotpCode(key, uint64(counter+int64(offset)), t.digits)
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			match = true
		}
	}
	return match, nil
}

func hotpCode(key []byte, counter uint64, digits int) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)
	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, value%mod)
}
