package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

// CreatedTaskAdapter implements CreatedTaskRepository.
type CreatedTaskAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCreatedTaskAdapter creates a new adapter.
func NewCreatedTaskAdapter(client *postgres.Client) repositories.CreatedTaskRepository {
	return &CreatedTaskAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert inserts or replaces the task record keyed by
// (encounter_id, check_result_id).
func (a *CreatedTaskAdapter) Upsert(ctx context.Context, task *entities.RemediationTask) error {
	if task == nil {
		return apperrors.NewValidationError("task is required")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	watchersBytes, _ := json.Marshal(task.Watchers)
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	query := `
		INSERT INTO created_tasks
			(id, encounter_id, patient_id, check_result_id, task_id, assignee, watchers,
			 description, issue_count, completion_status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12)
		ON CONFLICT (encounter_id, check_result_id)
		DO UPDATE SET
			task_id = EXCLUDED.task_id,
			assignee = EXCLUDED.assignee,
			watchers = EXCLUDED.watchers,
			description = EXCLUDED.description,
			issue_count = EXCLUDED.issue_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err := a.client.DB().ExecContext(
		ctx,
		query,
		task.ID,
		task.EncounterID,
		task.PatientID,
		task.CheckResultID,
		task.TaskID,
		task.Assignee,
		string(watchersBytes),
		task.Description,
		task.IssueCount,
		task.CompletionStatus,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert created task", err)
	}
	return nil
}

// ListOpen returns tracked tasks still awaiting upstream completion.
func (a *CreatedTaskAdapter) ListOpen(ctx context.Context, limit int) ([]*entities.RemediationTask, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.Select(
		"id",
		"encounter_id",
		"patient_id",
		"check_result_id",
		"task_id",
		"assignee",
		"watchers",
		"description",
		"issue_count",
		"completion_status",
		"last_polled_at",
		"created_at",
		"updated_at",
	).
		From("created_tasks").
		Where(goqu.Ex{"completion_status": string(entities.TaskOpen)}).
		Order(goqu.I("created_at").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build open tasks query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list open tasks", err)
	}
	defer rows.Close()

	var tasks []*entities.RemediationTask
	for rows.Next() {
		task := &entities.RemediationTask{}
		var watchersRaw []byte
		err := rows.Scan(
			&task.ID,
			&task.EncounterID,
			&task.PatientID,
			&task.CheckResultID,
			&task.TaskID,
			&task.Assignee,
			&watchersRaw,
			&task.Description,
			&task.IssueCount,
			&task.CompletionStatus,
			&task.LastPolledAt,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan created task", err)
		}
		if len(watchersRaw) > 0 {
			_ = json.Unmarshal(watchersRaw, &task.Watchers)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate open tasks", err)
	}

	return tasks, nil
}

// UpdateCompletion records the polled completion state of a task.
func (a *CreatedTaskAdapter) UpdateCompletion(ctx context.Context, taskID string, status entities.TaskCompletionStatus) error {
	now := time.Now().UTC()
	query, args, err := a.db.Update("created_tasks").
		Set(goqu.Record{
			"completion_status": string(status),
			"last_polled_at":    now,
			"updated_at":        now,
		}).
		Where(goqu.Ex{"task_id": taskID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build completion update", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update task completion", err)
	}
	return nil
}
