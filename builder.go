package gorbac

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goRBAC/jwt"
	"github.com/MrEthical07/goRBAC/password"
	"github.com/MrEthical07/goRBAC/session"
)

// Builder assembles an Engine. Config, Redis, store and mailer are
// required; everything else has defaults.
type Builder struct {
	cfg       Config
	cfgSet    bool
	rdb       redis.UniversalClient
	store     CredentialStore
	mailer    Mailer
	auditSink AuditSink
	now       func() time.Time
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// WithConfig sets the engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	b.cfgSet = true
	return b
}

// WithRedis sets the Redis client backing the session registry and the
// pending two-factor enrollment store.
func (b *Builder) WithRedis(rdb redis.UniversalClient) *Builder {
	b.rdb = rdb
	return b
}

// WithStore sets the durable credential store.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the outbound mail transport.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithAuditSink sets the audit sink. Defaults to NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine clock, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if !b.cfgSet {
		return nil, fmt.Errorf("%w: config required", ErrEngineNotReady)
	}
	if b.rdb == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrEngineNotReady)
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: credential store required", ErrEngineNotReady)
	}
	if b.mailer == nil {
		return nil, fmt.Errorf("%w: mailer required", ErrEngineNotReady)
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:    b.cfg.Token.AccessSecret,
		RefreshSecret:   b.cfg.Token.RefreshSecret,
		LoginLinkSecret: b.cfg.Token.LoginLinkSecret,
		AccessTTL:       b.cfg.Token.AccessTTL,
		RefreshTTL:      b.cfg.Token.RefreshTTL,
		LoginLinkTTL:    b.cfg.Token.LoginLinkTTL,
		Issuer:          b.cfg.Token.Issuer,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.New(password.Config{
		Memory:      b.cfg.Password.Memory,
		Time:        b.cfg.Password.Time,
		Parallelism: b.cfg.Password.Parallelism,
		SaltLength:  b.cfg.Password.SaltLength,
		KeyLength:   b.cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.New(b.rdb, b.cfg.Session.KeyPrefix, b.cfg.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}
	var dispatcher *auditDispatcher
	if b.cfg.Audit.Enabled {
		dispatcher = newAuditDispatcher(sink, b.cfg.Audit)
	}

	return &Engine{
		cfg:      b.cfg,
		store:    b.store,
		mailer:   b.mailer,
		sessions: sessions,
		enroll:   newEnrollmentStore(b.rdb, b.cfg.Session.KeyPrefix, b.cfg.TOTP.EnrollmentTTL),
		tokens:   tokens,
		hasher:   hasher,
		totp:     newTOTPManager(b.cfg.TOTP),
		audit:    dispatcher,
		metrics:  newMetricRegistry(b.cfg.Metrics),
		now:      now,
	}, nil
}
