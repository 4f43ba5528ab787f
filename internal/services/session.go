package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions: session:<role>:<token>
	SessionKeyPrefix = "session:"
	// RoleSessionKeyPrefix maps an account to its live token: role_session:<role>:<email>
	RoleSessionKeyPrefix = "role_session:"
)

// SessionCookieName is the per-role cookie, so sessions of different roles
// coexist in one browser.
func SessionCookieName(role models.Role) string {
	return "fc_" + string(role) + "_session"
}

// SessionStore keeps role-namespaced sessions in Redis. Each role has its own
// keyspace; creating a retailer session never touches a customer session.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionDuration
	}
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// TTL is the lifetime given to new sessions.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

func sessionKey(role models.Role, token string) string {
	return SessionKeyPrefix + string(role) + ":" + token
}

func roleSessionKey(role models.Role, email string) string {
	return RoleSessionKeyPrefix + string(role) + ":" + email
}

// Create stores a session for p under p.Role. Any earlier session of the same
// account and role is invalidated, so the timer restarts from this login.
func (s *SessionStore) Create(ctx context.Context, p models.Principal) (string, error) {
	p.Email = utils.NormalizeEmail(p.Email)
	if err := s.InvalidateAccount(ctx, p.Role, p.Email); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(p.Role, token), data, s.ttl)
		pipe.Set(ctx, roleSessionKey(p.Role, p.Email), token, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate returns the principal behind token in role's keyspace.
func (s *SessionStore) Validate(ctx context.Context, role models.Role, token string) (*models.Principal, bool, error) {
	if token == "" {
		return nil, false, nil
	}

	data, err := s.rdb.Get(ctx, sessionKey(role, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}

	var p models.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	if p.Role != role {
		return nil, false, nil
	}
	return &p, true, nil
}

// Refresh extends the session by the full TTL from now.
func (s *SessionStore) Refresh(ctx context.Context, role models.Role, token string) error {
	p, ok, err := s.Validate(ctx, role, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidToken
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, sessionKey(role, token), s.ttl)
		pipe.Expire(ctx, roleSessionKey(role, p.Email), s.ttl)
		return nil
	})
	return err
}

// Invalidate removes one session. Unknown tokens are not an error.
func (s *SessionStore) Invalidate(ctx context.Context, role models.Role, token string) error {
	if token == "" {
		return nil
	}
	p, ok, err := s.Validate(ctx, role, token)
	if err != nil {
		return err
	}
	if ok {
		// only drop the mapping if it still points at this token
		current, err := s.rdb.Get(ctx, roleSessionKey(role, p.Email)).Result()
		if err == nil && current == token {
			s.rdb.Del(ctx, roleSessionKey(role, p.Email))
		}
	}
	return s.rdb.Del(ctx, sessionKey(role, token)).Err()
}

// InvalidateAccount drops the live session of (role, email), e.g. after a
// password reset.
func (s *SessionStore) InvalidateAccount(ctx context.Context, role models.Role, email string) error {
	email = utils.NormalizeEmail(email)
	key := roleSessionKey(role, email)

	token, err := s.rdb.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("load account session: %w", err)
	}
	if token != "" {
		s.rdb.Del(ctx, sessionKey(role, token))
	}
	return s.rdb.Del(ctx, key).Err()
}
