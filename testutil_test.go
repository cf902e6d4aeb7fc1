package gorbac

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeClock is a mutable engine clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore is an in-memory CredentialStore for tests.
type memStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]*User

	findByIDCalls int
	updateCalls   int
	rotateCalls   int

	// beforeRotate runs inside RotateRefreshHash before the
	// compare-and-swap, with the lock held. Tests use it to model a
	// concurrent rotation winning the slot.
	beforeRotate func(u *User)
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*User{}}
}

func (s *memStore) copyOf(u *User) *User {
	c := *u
	return &c
}

func (s *memStore) FindByID(_ context.Context, id string, _ Include) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findByIDCalls++
	u, ok := s.users[id]
	if !ok || !u.Active {
		return nil, ErrUserNotFound
	}
	return s.copyOf(u), nil
}

func (s *memStore) FindByEmail(_ context.Context, email string, _ Include) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.Active {
			return s.copyOf(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memStore) FindByResetDigest(_ context.Context, digest string, now time.Time) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Active && digest != "" && u.ResetPasswordDigest == digest && u.ResetPasswordExpires.After(now) {
			return s.copyOf(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memStore) FindByVerifyDigest(_ context.Context, digest string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Active && digest != "" && u.VerifyEmailDigest == digest {
			return s.copyOf(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memStore) Create(_ context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, ErrEmailTaken
		}
	}
	s.seq++
	c := *u
	c.ID = "u" + strconv.Itoa(s.seq)
	s.users[c.ID] = &c
	return s.copyOf(&c), nil
}

func (s *memStore) Update(_ context.Context, id string, patch UserPatch) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if patch.Email != nil {
		for _, existing := range s.users {
			if existing.ID != id && existing.Email == *patch.Email {
				return nil, ErrEmailTaken
			}
		}
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Picture != nil {
		u.Picture = *patch.Picture
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	if patch.Blocked != nil {
		u.Blocked = *patch.Blocked
	}
	if patch.EmailVerified != nil {
		u.EmailVerified = *patch.EmailVerified
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.PasswordChangedAt != nil {
		u.PasswordChangedAt = *patch.PasswordChangedAt
	}
	if patch.RefreshTokenHash != nil {
		u.RefreshTokenHash = *patch.RefreshTokenHash
	}
	if patch.HasTwoFactorAuth != nil {
		u.HasTwoFactorAuth = *patch.HasTwoFactorAuth
	}
	if patch.TwoFactorSecret != nil {
		u.TwoFactorSecret = *patch.TwoFactorSecret
	}
	if patch.ResetPasswordDigest != nil {
		u.ResetPasswordDigest = *patch.ResetPasswordDigest
	}
	if patch.ResetPasswordExpires != nil {
		u.ResetPasswordExpires = *patch.ResetPasswordExpires
	}
	if patch.VerifyEmailDigest != nil {
		u.VerifyEmailDigest = *patch.VerifyEmailDigest
	}
	return s.copyOf(u), nil
}

func (s *memStore) RotateRefreshHash(_ context.Context, id, currentHash, nextHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotateCalls++
	u, ok := s.users[id]
	if !ok || !u.Active {
		return ErrUserNotFound
	}
	if s.beforeRotate != nil {
		s.beforeRotate(u)
	}
	if u.RefreshTokenHash != currentHash {
		return ErrRefreshConflict
	}
	u.RefreshTokenHash = nextHash
	return nil
}

// raw returns the stored record without copy semantics, for assertions.
func (s *memStore) raw(id string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// mailRec records outbound messages and can fail on demand.
type mailRec struct {
	mu       sync.Mutex
	sent     []Message
	failNext error
}

func (m *mailRec) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailRec) last(t *testing.T) Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail recorded")
	}
	return m.sent[len(m.sent)-1]
}

func (m *mailRec) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mailRec) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// tokenFromBody extracts the token a mail body carries after
// "opening: " when no link base is configured.
func tokenFromBody(t *testing.T, body string) string {
	t.Helper()
	const marker = "opening: "
	i := strings.Index(body, marker)
	if i < 0 {
		t.Fatalf("mail body has no token marker: %q", body)
	}
	rest := body[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")
	cfg.Token.LoginLinkSecret = []byte("test-loginlink-secret-0123456789ab")
	// Cheap argon parameters keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	eng   *Engine
	store *memStore
	mail  *mailRec
	redis *miniredis.Miniredis
	clock *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvConfig(t, testConfig())
}

func newTestEnvConfig(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	return buildTestEnv(t, cfg, nil)
}

// newTestEnvWithSink builds an environment whose engine reports to the
// given audit sink.
func newTestEnvWithSink(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()
	return buildTestEnv(t, cfg, sink)
}

func buildTestEnv(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	store := newMemStore()
	mail := &mailRec{}
	clock := newFakeClock()

	b := New().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithStore(store).
		WithMailer(mail).
		WithClock(clock.Now)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	eng, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(eng.Close)
	return &testEnv{eng: eng, store: store, mail: mail, redis: mr, clock: clock}
}

// signup creates an account and returns its auth result.
func (env *testEnv) signup(t *testing.T, email, pw string) *AuthResult {
	t.Helper()
	auth, err := env.eng.Signup(context.Background(), SignupRequest{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           email,
		Password:        pw,
		PasswordConfirm: pw,
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return auth
}

// totpCode computes the code the engine expects for secret at the
// given time.
func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	key, err := b32.DecodeString(secret)
	if err != nil {
		t.Fatalf("decode totp secret: %v", err)
	}
	return hotpCode(key, uint64(at.Unix()/30), 6)
}
