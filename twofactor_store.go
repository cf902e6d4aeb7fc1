package gorbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errEnrollmentMissing = errors.New("gorbac: pending enrollment missing")

// enrollmentStore parks unconfirmed TOTP secrets in Redis. A secret
// only reaches the user record after the account proves possession by
// confirming a valid code; until then the pending key expires on its
// own and the account's login flow is unaffected.
type enrollmentStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func newEnrollmentStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *enrollmentStore {
	return &enrollmentStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *enrollmentStore) key(userID string) string {
	return s.prefix + ":2fa:pending:" + userID
}

// Save parks secret for userID, replacing any previous pending secret
// and restarting the enrollment window.
func (s *enrollmentStore) Save(ctx context.Context, userID, secret string) error {
	if err := s.rdb.Set(ctx, s.key(userID), secret, s.ttl).Err(); err != nil {
		return fmt.Errorf("gorbac: save pending enrollment: %w", err)
	}
	return nil
}

// Get returns the pending secret for userID, or errEnrollmentMissing
// when none exists or the window elapsed.
func (s *enrollmentStore) Get(ctx context.Context, userID string) (string, error) {
	secret, err := s.rdb.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", errEnrollmentMissing
	}
	if err != nil {
		return "", fmt.Errorf("gorbac: load pending enrollment: %w", err)
	}
	return secret, nil
}

// Delete discards the pending secret. Idempotent.
func (s *enrollmentStore) Delete(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("gorbac: delete pending enrollment: %w", err)
	}
	return nil
}
