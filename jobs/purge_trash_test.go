package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/rbac/rbactest"
)

type fakeUsers struct {
	trashed map[int64]time.Time
	deleted []int64
	failOn  int64
}

func (f *fakeUsers) TrashedBefore(_ context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	for id, at := range f.trashed {
		if at.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeUsers) ForceDeleteUser(_ context.Context, id int64) error {
	if id == f.failOn {
		return errors.New("boom")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type recordingObserver struct {
	task string
	err  error
	runs int
}

func (o *recordingObserver) ObserveJob(task string, err error) {
	o.task, o.err = task, err
	o.runs++
}

func newPurgeFixture(t *testing.T) (*rbac.Service, *fakeUsers, *PurgeTrashJob, *recordingObserver) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := rbac.NewService(rbactest.NewMemStore(), rbac.ServiceOptions{Logger: logger})
	users := &fakeUsers{trashed: map[int64]time.Time{}}
	observer := &recordingObserver{}
	job := NewPurgeTrashJob(core, users, logger, observer)
	return core, users, job, observer
}

func TestPurgeTrashRemovesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	core, users, job, _ := newPurgeFixture(t)

	old, err := core.CreateRole(ctx, rbac.RoleInput{Name: "Old"})
	require.NoError(t, err)
	live, err := core.CreateRole(ctx, rbac.RoleInput{Name: "Live"})
	require.NoError(t, err)
	require.NoError(t, core.DeleteRole(ctx, old.ID))

	later := time.Now().UTC().Add(31 * 24 * time.Hour)
	users.trashed[7] = later.Add(-60 * 24 * time.Hour)
	users.trashed[8] = later.Add(-time.Hour)
	users.trashed[rbac.SuperAdminID] = later.Add(-90 * 24 * time.Hour)

	job.clock = func() time.Time { return later }
	result, err := job.Run(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Roles: 1, Users: 1}, result)
	assert.Equal(t, []int64{7}, users.deleted)

	_, err = core.GetRole(ctx, old.ID)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
	_, err = core.GetRole(ctx, live.ID)
	assert.NoError(t, err)
}

func TestPurgeTrashKeepsRecentlyTrashedRoles(t *testing.T) {
	ctx := context.Background()
	core, _, job, _ := newPurgeFixture(t)

	role, err := core.CreateRole(ctx, rbac.RoleInput{Name: "Recent"})
	require.NoError(t, err)
	require.NoError(t, core.DeleteRole(ctx, role.ID))

	result, err := job.Run(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Zero(t, result.Roles)
	_, err = core.GetRole(ctx, role.ID)
	assert.NoError(t, err)
}

func TestPurgeTrashReportsFailures(t *testing.T) {
	ctx := context.Background()
	_, users, job, observer := newPurgeFixture(t)
	now := time.Now().UTC()
	users.trashed[5] = now.Add(-60 * 24 * time.Hour)
	users.trashed[6] = now.Add(-60 * 24 * time.Hour)
	users.failOn = 5

	task, err := NewPurgeTrashTask(DefaultRetention)
	require.NoError(t, err)
	err = job.Handle(ctx, task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user 5")
	assert.Equal(t, []int64{6}, users.deleted)
	assert.Equal(t, TaskPurgeTrash, observer.task)
	assert.Error(t, observer.err)
}

func TestPurgeTrashRejectsBadPayload(t *testing.T) {
	_, _, job, observer := newPurgeFixture(t)
	err := job.Handle(context.Background(), asynq.NewTask(TaskPurgeTrash, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, observer.runs)
}

func TestPurgeTrashTaskPayload(t *testing.T) {
	task, err := NewPurgeTrashTask(48 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TaskPurgeTrash, task.Type())
	assert.JSONEq(t, `{"retention_hours":48}`, string(task.Payload()))
}
