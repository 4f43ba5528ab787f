package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ResetTokenDuration is how long a reset-password token stays valid.
	ResetTokenDuration = 10 * time.Minute
	// UsedResetTokenKeyPrefix marks consumed token ids: reset_used:<jti>
	UsedResetTokenKeyPrefix = "reset_used:"

	resetPurpose = "reset-password"
)

// ResetClaims identifies the account a reset token may change.
type ResetClaims struct {
	Role    models.Role `json:"role"`
	Email   string      `json:"email"`
	Purpose string      `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService signs short-lived reset-password tokens. Tokens are single use;
// consumed ids are remembered in Redis until the token would have expired.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, rdb *redis.Client) *TokenService {
	if ttl <= 0 {
		ttl = ResetTokenDuration
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, rdb: rdb, now: time.Now}
}

// IssueReset signs a token allowing a password change for (role, email).
func (s *TokenService) IssueReset(role models.Role, email string) (string, error) {
	now := s.now()
	claims := ResetClaims{
		Role:    role,
		Email:   email,
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseReset validates signature, expiry and purpose.
func (s *TokenService) ParseReset(tokenStr string) (*ResetClaims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &ResetClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	c, ok := t.Claims.(*ResetClaims)
	if !ok || !t.Valid || c.Purpose != resetPurpose || c.ID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// ConsumeReset parses the token and marks it used. A second call with the
// same token fails with ErrInvalidToken.
func (s *TokenService) ConsumeReset(ctx context.Context, tokenStr string) (*ResetClaims, error) {
	c, err := s.ParseReset(tokenStr)
	if err != nil {
		return nil, err
	}
	ttl := c.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil, ErrInvalidToken
	}
	ok, err := s.rdb.SetNX(ctx, UsedResetTokenKeyPrefix+c.ID, "1", ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("mark reset token used: %w", err)
	}
	if !ok {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// ReleaseReset forgets that c was consumed, so the same token can be used
// again after the password change it authorised failed.
func (s *TokenService) ReleaseReset(ctx context.Context, c *ResetClaims) error {
	if c == nil || c.ID == "" {
		return nil
	}
	if err := s.rdb.Del(ctx, UsedResetTokenKeyPrefix+c.ID).Err(); err != nil {
		return fmt.Errorf("release reset token: %w", err)
	}
	return nil
}
