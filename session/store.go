package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when the session id is absent from the
// registry, either revoked or expired.
var ErrNotFound = errors.New("session: not found")

// Store is the Redis-backed session registry. Safe for concurrent use.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New returns a Store writing under prefix with the given session TTL.
func New(rdb redis.UniversalClient, prefix string, ttl time.Duration) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("session: redis client required")
	}
	if prefix == "" {
		return nil, errors.New("session: key prefix required")
	}
	if ttl <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (s *Store) sessionKey(sid string) string { return s.prefix + ":sess:" + sid }
func (s *Store) userKey(uid string) string    { return s.prefix + ":user:" + uid }

// Save registers sid for userID. The registry key and the user index
// are written in one transaction so neither can exist without the
// other.
func (s *Store) Save(ctx context.Context, sid, userID string) error {
	if sid == "" || userID == "" {
		return errors.New("session: sid and user id required")
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sid), userID, s.ttl)
		pipe.SAdd(ctx, s.userKey(userID), sid)
		pipe.Expire(ctx, s.userKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Get returns the user id owning sid, or ErrNotFound when the session
// has been revoked or expired.
func (s *Store) Get(ctx context.Context, sid string) (string, error) {
	if sid == "" {
		return "", ErrNotFound
	}
	userID, err := s.rdb.Get(ctx, s.sessionKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: get: %w", err)
	}
	return userID, nil
}

// Touch extends the TTL of a live session, typically on refresh
// rotation. Touching a revoked session returns ErrNotFound.
func (s *Store) Touch(ctx context.Context, sid string) error {
	ok, err := s.rdb.Expire(ctx, s.sessionKey(sid), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete revokes a single session. Deleting an already revoked session
// is a no-op.
func (s *Store) Delete(ctx context.Context, sid, userID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sid))
		if userID != "" {
			pipe.SRem(ctx, s.userKey(userID), sid)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// DeleteAllForUser revokes every live session of userID and returns
// how many were removed.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	sids, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("session: list user sessions: %w", err)
	}
	if len(sids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, s.sessionKey(sid))
	}
	keys = append(keys, s.userKey(userID))
	removed, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("session: delete user sessions: %w", err)
	}
	n := int(removed) - 1
	if n < 0 {
		n = 0
	}
	return n, nil
}
