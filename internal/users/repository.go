package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/folio-cms/folio/internal/platform/httpx"
)

// ErrNotFound indicates a missing (or, for live lookups, trashed) user.
var ErrNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

// ListUsers returns one page of users and the total match count.
func (r *Repository) ListUsers(ctx context.Context, filters ListFilters, limit, offset int) ([]User, int, error) {
	const where = `WHERE (deleted_at IS NOT NULL) = $1
		AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users `+where, filters.Trashed, filters.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users `+where+` ORDER BY id LIMIT $3 OFFSET $4`,
		filters.Trashed, filters.Search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// GetUser fetches a user, trashed ones included.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return u, err
}

// SoftDeleteUser marks a live user as deleted.
func (r *Repository) SoftDeleteUser(ctx context.Context, id int64) error {
	return r.exec(ctx, id, `UPDATE users SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`)
}

// RestoreUser clears the soft delete marker.
func (r *Repository) RestoreUser(ctx context.Context, id int64) error {
	return r.exec(ctx, id, `UPDATE users SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL`)
}

// ForceDeleteUser removes the row; role assignments cascade.
func (r *Repository) ForceDeleteUser(ctx context.Context, id int64) error {
	return r.exec(ctx, id, `DELETE FROM users WHERE id = $1`)
}

func (r *Repository) exec(ctx context.Context, id int64, sql string) error {
	tag, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return nil
}

// TrashedBefore lists users soft deleted before the cutoff.
func (r *Repository) TrashedBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE deleted_at IS NOT NULL AND deleted_at < $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
