package repositories

import (
	"context"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// CreatedTaskRepository persists remediation tasks created upstream.
type CreatedTaskRepository interface {
	// Upsert inserts or replaces the task record keyed by
	// (encounter id, check result id).
	Upsert(ctx context.Context, task *entities.RemediationTask) error

	// ListOpen returns tracked tasks not yet observed as completed or
	// missing upstream.
	ListOpen(ctx context.Context, limit int) ([]*entities.RemediationTask, error)

	// UpdateCompletion records the polled completion state of a task.
	UpdateCompletion(ctx context.Context, taskID string, status entities.TaskCompletionStatus) error
}
