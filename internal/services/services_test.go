package services

import (
	"context"
	"sync"
	"testing"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// fakeAccounts is an in-memory AccountStore.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]*models.Account)}
}

func accountKey(role models.Role, email string) string { return string(role) + "|" + email }

func (f *fakeAccounts) Exists(_ context.Context, role models.Role, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[accountKey(role, email)]
	return ok, nil
}

func (f *fakeAccounts) Create(_ context.Context, acc *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := accountKey(acc.Role, acc.Email)
	if _, ok := f.accounts[k]; ok {
		return ErrAccountExists
	}
	cp := *acc
	f.accounts[k] = &cp
	return nil
}

func (f *fakeAccounts) FindByEmail(_ context.Context, role models.Role, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[accountKey(role, email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, role models.Role, email, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[accountKey(role, email)]
	if !ok {
		return ErrAccountNotFound
	}
	acc.PasswordHash = hash
	return nil
}

// capturePublisher records issued codes.
type capturePublisher struct {
	mu     sync.Mutex
	events []models.OTPIssued
	err    error
}

func (c *capturePublisher) PublishOTP(_ context.Context, ev models.OTPIssued) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) last() models.OTPIssued {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}
