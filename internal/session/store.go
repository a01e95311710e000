// Package session stores the single active session per (role, id) and the
// short-lived reset-password keys in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
)

const (
	accessPrefix   = "user-access:"
	resetPrefix    = "reset-password:"
	attemptsPrefix = "reset-attempts:"
)

// ErrNotFound is returned when a session or reset key does not exist or has
// expired.
var ErrNotFound = errors.New("session: not found")

// Store implements the session store on Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a Redis-backed session store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// AccessKey returns the key holding the session record for (role, id).
func AccessKey(role domain.Role, id string) string {
	return accessPrefix + string(role) + ":" + id
}

// ResetKey returns the key holding a reset-password value.
func ResetKey(key string) string {
	return resetPrefix + key
}

// AttemptsKey returns the key counting failed checks against a reset key.
func AttemptsKey(key string) string {
	return attemptsPrefix + key
}

// Get returns the session record for (role, id).
func (s *Store) Get(ctx context.Context, role domain.Role, id string) (*domain.SessionRecord, error) {
	data, err := s.client.Get(ctx, AccessKey(role, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &rec, nil
}

// Set writes rec for (role, id), replacing any previous record. Replacing is
// what revokes the previously issued access token.
func (s *Store) Set(ctx context.Context, role domain.Role, id string, rec *domain.SessionRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, AccessKey(role, id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete removes the session for (role, id). Deleting a missing session is
// not an error.
func (s *Store) Delete(ctx context.Context, role domain.Role, id string) error {
	if err := s.client.Del(ctx, AccessKey(role, id)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// SetResetToken stores value under key for ttl.
func (s *Store) SetResetToken(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, ResetKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set reset token: %w", err)
	}
	return nil
}

// GetResetToken returns the value stored under key. Reads do not consume the
// key; callers delete it once used.
func (s *Store) GetResetToken(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, ResetKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get reset token: %w", err)
	}
	return v, nil
}

// DeleteResetToken removes key and its failed-attempt counter.
func (s *Store) DeleteResetToken(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, ResetKey(key), AttemptsKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del reset token: %w", err)
	}
	return nil
}

// IncrResetAttempts counts one more failed check against key and returns
// the running total. The counter lives for ttl.
func (s *Store) IncrResetAttempts(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, AttemptsKey(key))
	pipe.Expire(ctx, AttemptsKey(key), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr reset attempts: %w", err)
	}
	return incr.Val(), nil
}

// Ping checks the store connection. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
