package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AccountStore persists accounts, one per (role, email).
type AccountStore interface {
	AccountLookup
	Create(ctx context.Context, acc *models.Account) error
	FindByEmail(ctx context.Context, role models.Role, email string) (*models.Account, error)
	UpdatePassword(ctx context.Context, role models.Role, email, passwordHash string) error
}

// PostgresAccountStore is the AccountStore on the accounts table.
type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

func (s *PostgresAccountStore) Exists(ctx context.Context, role models.Role, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE role = $1 AND LOWER(email) = $2)
	`, string(role), utils.NormalizeEmail(email)).Scan(&exists)
	return exists, err
}

func (s *PostgresAccountStore) Create(ctx context.Context, acc *models.Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	now := time.Now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now
	acc.Email = utils.NormalizeEmail(acc.Email)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, role, email, name, phone, password_hash, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, acc.ID, string(acc.Role), acc.Email, acc.Name, acc.Phone, acc.PasswordHash, acc.IsVerified, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) FindByEmail(ctx context.Context, role models.Role, email string) (*models.Account, error) {
	var acc models.Account
	var roleStr string
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, role, email, name, phone, password_hash, is_verified, created_at, updated_at
		FROM accounts WHERE role = $1 AND LOWER(email) = $2
	`, string(role), utils.NormalizeEmail(email)).Scan(
		&acc.ID, &roleStr, &acc.Email, &acc.Name, &phone, &acc.PasswordHash, &acc.IsVerified, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	acc.Role = models.Role(roleStr)
	acc.Phone = phone.String
	return &acc, nil
}

func (s *PostgresAccountStore) UpdatePassword(ctx context.Context, role models.Role, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET password_hash = $1, updated_at = NOW()
		WHERE role = $2 AND LOWER(email) = $3
	`, passwordHash, string(role), utils.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Authenticate checks a password login. Unknown accounts and wrong passwords
// both report ErrInvalidCredentials.
func Authenticate(ctx context.Context, store AccountStore, role models.Role, email, password string) (*models.Account, error) {
	acc, err := store.FindByEmail(ctx, role, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := utils.VerifyPassword(password, acc.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// EnsureAccount creates acc with password unless (role, email) already exists.
func EnsureAccount(ctx context.Context, store AccountStore, acc *models.Account, password string) (bool, error) {
	exists, err := store.Exists(ctx, acc.Role, acc.Email)
	if err != nil || exists {
		return false, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	acc.PasswordHash = hash
	acc.IsVerified = true
	if err := store.Create(ctx, acc); err != nil && !errors.Is(err, ErrAccountExists) {
		return false, err
	}
	return true, nil
}
