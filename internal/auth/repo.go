package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/folio-cms/folio/internal/platform/httpx"
)

// ErrUserNotFound indicates a missing or soft deleted account.
var ErrUserNotFound = fmt.Errorf("auth: user: %w", httpx.ErrNotFound)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	TouchLogin(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const liveUser = `SELECT id, email, name, password_hash, last_login_at FROM users WHERE deleted_at IS NULL`

func (r *PGRepository) find(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, liveUser+" AND "+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail fetches a live user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(ctx, "lower(email) = $1", strings.ToLower(strings.TrimSpace(email)))
}

// FindByID fetches a live user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.find(ctx, "id = $1", id)
}

// TouchLogin records a successful sign-in.
func (r *PGRepository) TouchLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
