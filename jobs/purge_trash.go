package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/folio-cms/folio/internal/rbac"
)

// DefaultRetention is how long soft deleted records are kept when a payload omits it.
const DefaultRetention = 30 * 24 * time.Hour

// RoleTrash is the role side of the purge.
type RoleTrash interface {
	ListRoles(ctx context.Context, includeTrashed bool) ([]rbac.Role, error)
	ForceDeleteRole(ctx context.Context, id int64) error
}

// UserTrash is the account side of the purge.
type UserTrash interface {
	TrashedBefore(ctx context.Context, cutoff time.Time) ([]int64, error)
	ForceDeleteUser(ctx context.Context, id int64) error
}

// JobObserver records job outcomes.
type JobObserver interface {
	ObserveJob(task string, err error)
}

// PurgeTrashJob force deletes roles and users that stayed soft deleted past
// the retention window. The admin role and the super admin account are kept.
type PurgeTrashJob struct {
	Roles    RoleTrash
	Users    UserTrash
	Logger   *slog.Logger
	Observer JobObserver
	clock    func() time.Time
}

// PurgeResult counts what one run removed.
type PurgeResult struct {
	Roles int
	Users int
}

// NewPurgeTrashJob wires dependencies for the purge handler.
func NewPurgeTrashJob(roles RoleTrash, users UserTrash, logger *slog.Logger, observer JobObserver) *PurgeTrashJob {
	return &PurgeTrashJob{
		Roles:    roles,
		Users:    users,
		Logger:   logger,
		Observer: observer,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskPurgeTrash tasks.
func (j *PurgeTrashJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("purge trash: handler not configured")
	}
	var payload PurgeTrashPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("purge trash: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	retention := payload.Retention()
	if retention <= 0 {
		retention = DefaultRetention
	}
	_, err := j.Run(ctx, retention)
	if j.Observer != nil {
		j.Observer.ObserveJob(TaskPurgeTrash, err)
	}
	return err
}

// Run purges everything trashed longer than retention ago.
func (j *PurgeTrashJob) Run(ctx context.Context, retention time.Duration) (PurgeResult, error) {
	cutoff := j.now().Add(-retention)
	logger := j.logger().With(slog.Time("cutoff", cutoff))

	var result PurgeResult
	var errs []error

	roles, err := j.Roles.ListRoles(ctx, true)
	if err != nil {
		return result, fmt.Errorf("purge trash: list roles: %w", err)
	}
	for _, role := range roles {
		if !role.Trashed() || !role.DeletedAt.Before(cutoff) {
			continue
		}
		if err := j.Roles.ForceDeleteRole(ctx, role.ID); err != nil {
			if errors.Is(err, rbac.ErrInvalidInput) {
				logger.Warn("purge trash skipped protected role", slog.String("slug", role.Slug))
				continue
			}
			errs = append(errs, fmt.Errorf("role %d: %w", role.ID, err))
			continue
		}
		result.Roles++
	}

	ids, err := j.Users.TrashedBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge trash: list users: %w", err))
		ids = nil
	}
	for _, id := range ids {
		if id == rbac.SuperAdminID {
			continue
		}
		if err := j.Users.ForceDeleteUser(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", id, err))
			continue
		}
		result.Users++
	}

	logger.Info("purge trash finished", slog.Int("roles", result.Roles), slog.Int("users", result.Users), slog.Int("failures", len(errs)))
	return result, errors.Join(errs...)
}

func (j *PurgeTrashJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *PurgeTrashJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
