package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/folio-cms/folio/internal/platform/db"
)

// PostgresStore provides PostgreSQL backed persistence for the permission core.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a store over the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const permissionColumns = `id, resource, actions, description, created_at, updated_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var (
		p       Permission
		actions []string
	)
	if err := row.Scan(&p.ID, &p.Resource, &actions, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Permission{}, err
	}
	p.Actions = ActionSetFromStrings(actions)
	return p, nil
}

// GetPermission loads the vocabulary row for a resource.
func (s *PostgresStore) GetPermission(ctx context.Context, resource string) (Permission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE resource = $1`, resource)
	p, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
		}
		return Permission{}, err
	}
	return p, nil
}

// ListPermissions returns every vocabulary row ordered by resource.
func (s *PostgresStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY resource`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// DefinePermission upserts the vocabulary and trims grants to it in one transaction.
func (s *PostgresStore) DefinePermission(ctx context.Context, perm Permission) (Permission, error) {
	var out Permission
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO permissions (resource, actions, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (resource) DO UPDATE
			SET actions = EXCLUDED.actions, description = EXCLUDED.description, updated_at = now()
			RETURNING `+permissionColumns, perm.Resource, perm.Actions.Strings(), perm.Description)
		p, err := scanPermission(row)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE role_permissions
			SET actions = ARRAY(SELECT a FROM unnest(actions) AS a WHERE a = ANY($2::text[]) ORDER BY a),
			    updated_at = now()
			WHERE permission_id = $1 AND NOT (actions <@ $2::text[])`, p.ID, p.Actions.Strings())
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		if db.IsSerializationFailure(err) {
			return Permission{}, fmt.Errorf("%w: concurrent vocabulary change for %s", ErrConflict, perm.Resource)
		}
		return Permission{}, err
	}
	return out, nil
}

// UpsertGrant writes the role grant for a permission, replacing any previous action set.
func (s *PostgresStore) UpsertGrant(ctx context.Context, roleID, permissionID int64, actions ActionSet) (RolePermission, error) {
	var (
		rp     RolePermission
		stored []string
	)
	err := s.pool.QueryRow(ctx, `
		WITH upserted AS (
			INSERT INTO role_permissions (role_id, permission_id, actions)
			VALUES ($1, $2, $3)
			ON CONFLICT (role_id, permission_id) DO UPDATE
			SET actions = EXCLUDED.actions, updated_at = now()
			RETURNING role_id, permission_id, actions, updated_at
		)
		SELECT u.role_id, u.permission_id, p.resource, u.actions, u.updated_at
		FROM upserted u JOIN permissions p ON p.id = u.permission_id`,
		roleID, permissionID, actions.Strings(),
	).Scan(&rp.RoleID, &rp.PermissionID, &rp.Resource, &stored, &rp.UpdatedAt)
	if err != nil {
		switch {
		case db.IsForeignKeyViolation(err):
			return RolePermission{}, fmt.Errorf("%w: role %d or permission %d", ErrNotFound, roleID, permissionID)
		case db.IsUniqueViolation(err):
			return RolePermission{}, fmt.Errorf("%w: grant for role %d", ErrConflict, roleID)
		}
		return RolePermission{}, err
	}
	rp.Actions = ActionSetFromStrings(stored)
	return rp, nil
}

// DeleteGrant removes the binding between a role and a permission.
func (s *PostgresStore) DeleteGrant(ctx context.Context, roleID, permissionID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Grant returns the actions a role holds on a resource.
func (s *PostgresStore) Grant(ctx context.Context, roleID int64, resource string) (ActionSet, bool, error) {
	var actions []string
	err := s.pool.QueryRow(ctx, `
		SELECT rp.actions
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND p.resource = $2`, roleID, resource).Scan(&actions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActionSet{}, false, nil
		}
		return nil, false, err
	}
	return ActionSetFromStrings(actions), true, nil
}

// GrantsForRole lists every grant held by a role.
func (s *PostgresStore) GrantsForRole(ctx context.Context, roleID int64) ([]RolePermission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rp.role_id, rp.permission_id, p.resource, rp.actions, rp.updated_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.resource`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RolePermission
	for rows.Next() {
		var (
			rp      RolePermission
			actions []string
		)
		if err := rows.Scan(&rp.RoleID, &rp.PermissionID, &rp.Resource, &actions, &rp.UpdatedAt); err != nil {
			return nil, err
		}
		rp.Actions = ActionSetFromStrings(actions)
		grants = append(grants, rp)
	}
	return grants, rows.Err()
}

const roleColumns = `id, name, slug, description, created_at, updated_at, deleted_at`

func scanRole(row pgx.Row) (Role, error) {
	var (
		r         Role
		deletedAt *time.Time
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Slug, &r.Description, &r.CreatedAt, &r.UpdatedAt, &deletedAt); err != nil {
		return Role{}, err
	}
	r.DeletedAt = deletedAt
	return r, nil
}

func roleErr(err error, id int64) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: role %d", ErrNotFound, id)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: role slug already taken", ErrConflict)
	}
	return err
}

// GetRole fetches a role by ID, trashed or not.
func (s *PostgresStore) GetRole(ctx context.Context, id int64) (Role, error) {
	r, err := scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return Role{}, roleErr(err, id)
	}
	return r, nil
}

// GetRoleBySlug fetches a role by its slug, trashed or not.
func (s *PostgresStore) GetRoleBySlug(ctx context.Context, slug string) (Role, error) {
	r, err := scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %q", ErrNotFound, slug)
		}
		return Role{}, err
	}
	return r, nil
}

// ListRoles returns roles ordered by name.
func (s *PostgresStore) ListRoles(ctx context.Context, includeTrashed bool) ([]Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE ($1 OR deleted_at IS NULL) ORDER BY name, id`
	rows, err := s.pool.Query(ctx, query, includeTrashed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (s *PostgresStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	r, err := scanRole(s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, slug, description)
		VALUES ($1, $2, $3)
		RETURNING `+roleColumns, role.Name, role.Slug, role.Description))
	if err != nil {
		return Role{}, roleErr(err, 0)
	}
	return r, nil
}

// UpdateRole updates name, slug and description of an existing role.
func (s *PostgresStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	r, err := scanRole(s.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, slug = $3, description = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+roleColumns, role.ID, role.Name, role.Slug, role.Description))
	if err != nil {
		return Role{}, roleErr(err, role.ID)
	}
	return r, nil
}

// SoftDeleteRole marks a role as deleted while keeping its grants and assignments.
func (s *PostgresStore) SoftDeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE roles SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: active role %d", ErrNotFound, id)
	}
	return nil
}

// RestoreRole clears the soft delete marker.
func (s *PostgresStore) RestoreRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE roles SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: trashed role %d", ErrNotFound, id)
	}
	return nil
}

// ForceDeleteRole removes the role row; grants and assignments cascade.
func (s *PostgresStore) ForceDeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", ErrNotFound, id)
	}
	return nil
}

// AssignRole binds a role to a user. Assigning twice is a no-op.
func (s *PostgresStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %d or role %d", ErrNotFound, userID, roleID)
		}
		return err
	}
	return nil
}

// RemoveRole unbinds a role from a user.
func (s *PostgresStore) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

// SyncUserRoles replaces the user's role set.
func (s *PostgresStore) SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if roleIDs == nil {
		// A NULL array would make the ANY() filter match nothing.
		roleIDs = []int64{}
	}
	err :=db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND NOT (role_id = ANY($2::bigint[]))`, userID, roleIDs); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING`, userID, roleIDs)
		return err
	})
	switch {
	case err == nil:
		return nil
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: user %d or one of roles %v", ErrNotFound, userID, roleIDs)
	case db.IsSerializationFailure(err):
		return fmt.Errorf("%w: concurrent role change for user %d", ErrConflict, userID)
	}
	return err
}

// RolesForUser lists the roles bound to a user.
func (s *PostgresStore) RolesForUser(ctx context.Context, userID int64, includeTrashed bool) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name, r.slug, r.description, r.created_at, r.updated_at, r.deleted_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 AND ($2 OR r.deleted_at IS NULL)
		ORDER BY r.name, r.id`, userID, includeTrashed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}
