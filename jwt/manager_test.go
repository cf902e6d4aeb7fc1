package jwt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testManager(t *testing.T) (*Manager, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		AccessSecret:    []byte("access-secret-0123456789abcdef0123"),
		RefreshSecret:   []byte("refresh-secret-0123456789abcdef012"),
		LoginLinkSecret: []byte("loginlink-secret-0123456789abcdef0"),
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      30 * 24 * time.Hour,
		LoginLinkTTL:    10 * time.Minute,
		Issuer:          "gorbac-test",
		Now:             clock.now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr, clock
}

func TestRoundTripPerClass(t *testing.T) {
	mgr, _ := testManager(t)

	access, err := mgr.CreateAccess("u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := mgr.ParseAccess(access)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "u1" || claims.SessionID != "s1" {
		t.Fatalf("claims = %+v", claims)
	}

	refresh, err := mgr.CreateRefresh("u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.ParseRefresh(refresh); err != nil {
		t.Fatal(err)
	}

	link, err := mgr.CreateLoginLink("u1")
	if err != nil {
		t.Fatal(err)
	}
	linkClaims, err := mgr.ParseLoginLink(link)
	if err != nil {
		t.Fatal(err)
	}
	if linkClaims.SessionID != "" {
		t.Fatal("login links must not carry a session id")
	}
}

func TestCrossClassRejection(t *testing.T) {
	mgr, _ := testManager(t)

	access, _ := mgr.CreateAccess("u1", "s1")
	refresh, _ := mgr.CreateRefresh("u1", "s1")
	link, _ := mgr.CreateLoginLink("u1")

	if _, err := mgr.ParseRefresh(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access as refresh: %v", err)
	}
	if _, err := mgr.ParseAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh as access: %v", err)
	}
	if _, err := mgr.ParseAccess(link); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("link as access: %v", err)
	}
	if _, err := mgr.ParseLoginLink(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access as link: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	mgr, clock := testManager(t)

	access, _ := mgr.CreateAccess("u1", "s1")
	link, _ := mgr.CreateLoginLink("u1")

	clock.advance(11 * time.Minute)
	if _, err := mgr.ParseLoginLink(link); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("link after 11m: %v", err)
	}
	if _, err := mgr.ParseAccess(access); err != nil {
		t.Fatalf("access at 11m should live: %v", err)
	}

	clock.advance(5 * time.Minute)
	if _, err := mgr.ParseAccess(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("access after 16m: %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	mgr, _ := testManager(t)
	access, _ := mgr.CreateAccess("u1", "s1")

	parts := strings.Split(access, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := mgr.ParseAccess(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
	if _, err := mgr.ParseAccess("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestManagerConfigValidation(t *testing.T) {
	base := Config{
		AccessSecret:    []byte("access-secret-0123456789abcdef0123"),
		RefreshSecret:   []byte("refresh-secret-0123456789abcdef012"),
		LoginLinkSecret: []byte("loginlink-secret-0123456789abcdef0"),
		AccessTTL:       time.Minute,
		RefreshTTL:      time.Hour,
		LoginLinkTTL:    time.Minute,
	}

	short := base
	short.AccessSecret = []byte("short")
	if _, err := NewManager(short); err == nil {
		t.Fatal("short secret must fail")
	}

	shared := base
	shared.RefreshSecret = shared.AccessSecret
	if _, err := NewManager(shared); err == nil {
		t.Fatal("shared class secrets must fail")
	}

	zeroTTL := base
	zeroTTL.LoginLinkTTL = 0
	if _, err := NewManager(zeroTTL); err == nil {
		t.Fatal("zero lifetime must fail")
	}
}

func TestCreateRequiresUserID(t *testing.T) {
	mgr, _ := testManager(t)
	if _, err := mgr.CreateAccess("", "s1"); err == nil {
		t.Fatal("empty user id must fail")
	}
}
