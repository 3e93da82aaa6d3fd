package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"safemaint-backend/internal/model"
)

// ErrSessionNotFound is returned for unknown, revoked or expired tokens.
var ErrSessionNotFound = errors.New("session not found or expired")

// Session is the identity bound to a login token.
type Session struct {
	Token     string     `json:"-"`
	UserID    string     `json:"userId"`
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// SessionStore persists sessions by token.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Lookup(ctx context.Context, token string) (Session, error)
	Revoke(ctx context.Context, token string) error
}

// RedisStore keeps sessions in Redis so every edge node sees the same
// logins.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store from an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "session:"}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// Save stores the session until its expiry.
func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	if err := s.client.Set(ctx, s.key(sess.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup returns the session bound to token.
func (s *RedisStore) Lookup(ctx context.Context, token string) (Session, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	sess.Token = token
	return sess, nil
}

// Revoke deletes the session.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// MemoryStore keeps sessions in process. Used when no Redis is configured.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

// Save stores the session until its expiry.
func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	s.cache.Set(sess.Token, sess, ttl)
	return nil
}

// Lookup returns the session bound to token.
func (s *MemoryStore) Lookup(_ context.Context, token string) (Session, error) {
	v, ok := s.cache.Get(token)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return v.(Session), nil
}

// Revoke deletes the session.
func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.cache.Delete(token)
	return nil
}
