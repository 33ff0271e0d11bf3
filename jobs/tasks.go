package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPurgeTrash force deletes roles and users that stayed in the trash too long.
	TaskPurgeTrash = "trash:purge"
)

// PurgeTrashPayload configures one purge run.
type PurgeTrashPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// Retention converts the payload into a duration.
func (p PurgeTrashPayload) Retention() time.Duration {
	return time.Duration(p.RetentionHours) * time.Hour
}

// NewPurgeTrashTask builds the purge task for the given retention.
func NewPurgeTrashTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PurgeTrashPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeTrash, data, asynq.Queue(QueueDefault)), nil
}
