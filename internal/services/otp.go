package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/notify"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// OTPKeyPrefix holds the challenge hash: otp:<action>:<email>
	OTPKeyPrefix = "otp:"
	// OTPCooldownKeyPrefix blocks resends: otp_cooldown:<action>:<email>
	OTPCooldownKeyPrefix = "otp_cooldown:"
)

// OTPOptions tunes challenge lifetime.
type OTPOptions struct {
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

// DefaultOTPOptions: 5 minute expiry, 30 second resend cooldown, 5 attempts.
var DefaultOTPOptions = OTPOptions{TTL: 5 * time.Minute, Cooldown: 30 * time.Second, MaxAttempts: 5}

// AccountLookup is the slice of the account store the OTP channel needs.
type AccountLookup interface {
	Exists(ctx context.Context, role models.Role, email string) (bool, error)
}

// OTPTicket tells the caller how long the code lives and when it may resend.
type OTPTicket struct {
	ExpiresIn   time.Duration
	ResendAfter time.Duration
}

// OTPService issues and verifies one-time codes stored in Redis.
type OTPService struct {
	rdb       *redis.Client
	accounts  AccountLookup
	publisher notify.Publisher
	opts      OTPOptions
	log       zerolog.Logger

	now      func() time.Time
	generate func() (string, error)
}

func NewOTPService(rdb *redis.Client, accounts AccountLookup, publisher notify.Publisher, opts OTPOptions, log zerolog.Logger) *OTPService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultOTPOptions.TTL
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultOTPOptions.Cooldown
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOTPOptions.MaxAttempts
	}
	return &OTPService{
		rdb:       rdb,
		accounts:  accounts,
		publisher: publisher,
		opts:      opts,
		log:       log.With().Str("component", "otp").Logger(),
		now:       time.Now,
		generate:  GenerateOTPCode,
	}
}

// GenerateOTPCode returns a uniformly random 4-digit code.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

func otpKey(action models.OTPAction, email string) string {
	return OTPKeyPrefix + string(action) + ":" + email
}

func otpCooldownKey(action models.OTPAction, email string) string {
	return OTPCooldownKeyPrefix + string(action) + ":" + email
}

// Issue creates (or replaces) the challenge for (action, email) and publishes
// the code. It fails with *ResendTooSoonError while the cooldown is running.
func (s *OTPService) Issue(ctx context.Context, email string, action models.OTPAction, role models.Role) (OTPTicket, error) {
	email = utils.NormalizeEmail(email)

	if err := s.checkAccount(ctx, email, action, role); err != nil {
		return OTPTicket{}, err
	}

	cooldownKey := otpCooldownKey(action, email)
	ok, err := s.rdb.SetNX(ctx, cooldownKey, "1", s.opts.Cooldown).Result()
	if err != nil {
		return OTPTicket{}, fmt.Errorf("set otp cooldown: %w", err)
	}
	if !ok {
		remaining, err := s.rdb.PTTL(ctx, cooldownKey).Result()
		if err != nil || remaining < 0 {
			remaining = s.opts.Cooldown
		}
		return OTPTicket{ResendAfter: remaining}, &ResendTooSoonError{RetryAfter: remaining}
	}

	code, err := s.generate()
	if err != nil {
		s.rdb.Del(ctx, cooldownKey)
		return OTPTicket{}, fmt.Errorf("generate otp: %w", err)
	}

	issuedAt := s.now().UTC()
	key := otpKey(action, email)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", code,
			"role", string(role),
			"attempts", 0,
			"issued_at", issuedAt.Unix(),
		)
		pipe.Expire(ctx, key, s.opts.TTL)
		return nil
	})
	if err != nil {
		s.rdb.Del(ctx, cooldownKey)
		return OTPTicket{}, fmt.Errorf("store otp challenge: %w", err)
	}

	ev := models.OTPIssued{
		Email:     email,
		Action:    action,
		Role:      role,
		Code:      code,
		ExpiresAt: issuedAt.Add(s.opts.TTL),
	}
	if err := s.publisher.PublishOTP(ctx, ev); err != nil {
		// nothing was delivered, so let the user ask again right away
		s.rdb.Del(ctx, key, cooldownKey)
		return OTPTicket{}, fmt.Errorf("publish otp: %w", err)
	}

	s.log.Info().Str("email", email).Str("action", string(action)).Str("role", string(role)).Msg("otp issued")
	return OTPTicket{ExpiresIn: s.opts.TTL, ResendAfter: s.opts.Cooldown}, nil
}

func (s *OTPService) checkAccount(ctx context.Context, email string, action models.OTPAction, role models.Role) error {
	if action == models.OTPActionSignup && !role.SelfService() {
		return ErrRoleNotAllowed
	}
	exists, err := s.accounts.Exists(ctx, role, email)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	switch action {
	case models.OTPActionSignup:
		if exists {
			return ErrAccountExists
		}
	default:
		if !exists {
			return ErrAccountNotFound
		}
	}
	return nil
}

// verifyScript checks and consumes a challenge in one step so concurrent
// guesses each spend an attempt. KEYS[1] challenge; ARGV code, role, max.
// Replies {0} missing, {1, issued_at} match, {2} miss, {3} exhausted.
var verifyScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return {0}
end
local max = tonumber(ARGV[3])
local attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
if attempts > max then
	redis.call("DEL", KEYS[1])
	return {3}
end
local f = redis.call("HMGET", KEYS[1], "code", "role", "issued_at")
if f[1] == ARGV[1] and f[2] == ARGV[2] then
	redis.call("DEL", KEYS[1])
	return {1, f[3] or ""}
end
if attempts >= max then
	redis.call("DEL", KEYS[1])
	return {3}
end
return {2}
`)

// Verify checks code against the outstanding challenge. A match consumes the
// challenge; the last allowed miss deletes it.
func (s *OTPService) Verify(ctx context.Context, email string, action models.OTPAction, role models.Role, code string) (*models.OTPChallenge, error) {
	email = utils.NormalizeEmail(email)
	key := otpKey(action, email)

	reply, err := verifyScript.Run(ctx, s.rdb, []string{key}, code, string(role), s.opts.MaxAttempts).Slice()
	if err != nil {
		return nil, fmt.Errorf("verify otp challenge: %w", err)
	}
	if len(reply) == 0 {
		return nil, fmt.Errorf("verify otp challenge: empty reply")
	}
	status, _ := reply[0].(int64)
	switch status {
	case 0:
		return nil, ErrOTPExpired
	case 2:
		return nil, ErrOTPInvalid
	case 3:
		return nil, ErrOTPAttemptsExceeded
	}

	ch := &models.OTPChallenge{Email: email, Action: action, Role: role, Code: code}
	if len(reply) > 1 {
		if raw, ok := reply[1].(string); ok {
			if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
				ch.IssuedAt = time.Unix(ts, 0).UTC()
			}
		}
	}
	return ch, nil
}

