// Package accounts manages API-key accounts: Postgres persistence, a
// Redis lookup cache, and key delivery by email.
package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"heritage-api/internal/search/params"
)

// Account is one row of the account table.
type Account struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Email     string    `json:"email"`
	Enabled   bool      `json:"enabled"`
	Staff     bool      `json:"staff"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail applies the account email rule: plausible address, at
// most 100 characters.
func IsValidEmail(email string) bool {
	return len(email) <= 100 && emailRegex.MatchString(email)
}

// IsValidAPIKey reports whether key has the published API-key shape.
func IsValidAPIKey(key string) bool {
	return params.ValidAPIKey(key)
}

const (
	findByKeyQuery = `select id, key, email, enabled, staff, created_at, updated_at
		from account where key = $1`
	findByEmailQuery = `select id, key, email, enabled, staff, created_at, updated_at
		from account where email = $1`
	insertAccountQuery = `insert into account (key, email, enabled, staff, created_at, updated_at)
		values ($1, $2, true, false, now(), now())
		returning id, key, email, enabled, staff, created_at, updated_at`
)

// Repository looks up and creates accounts in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByAPIKey returns the account for key, or nil when none exists.
func (r *Repository) FindByAPIKey(ctx context.Context, key string) (*Account, error) {
	return r.findOne(ctx, findByKeyQuery, key)
}

// FindByEmail returns the account for email, or nil when none exists.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, findByEmailQuery, email)
}

func (r *Repository) findOne(ctx context.Context, query, arg string) (*Account, error) {
	var a Account
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Key, &a.Email, &a.Enabled, &a.Staff, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	return &a, nil
}

// CreateAccount inserts a new enabled account with a freshly generated
// key and returns it.
func (r *Repository) CreateAccount(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := r.db.QueryRowContext(ctx, insertAccountQuery, GenerateKey(), email).Scan(
		&a.ID, &a.Key, &a.Email, &a.Enabled, &a.Staff, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("account creation failed: %w", err)
	}
	return &a, nil
}

// GenerateKey produces a 32-character key: a UUID with the hyphens
// removed, which satisfies both the key and the id format rules.
func GenerateKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
