package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

// IssueOverrideAdapter implements IssueOverrideRepository.
type IssueOverrideAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewIssueOverrideAdapter creates a new adapter.
func NewIssueOverrideAdapter(client *postgres.Client) repositories.IssueOverrideRepository {
	return &IssueOverrideAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append records a new override. Plain insert: overrides are
// append-only and never replace earlier ones.
func (a *IssueOverrideAdapter) Append(ctx context.Context, override *entities.IssueOverride) error {
	if override == nil {
		return apperrors.NewValidationError("override is required")
	}
	if override.CheckResultID == "" {
		return apperrors.NewValidationError("check result id is required")
	}
	if override.ID == "" {
		override.ID = uuid.New().String()
	}
	if override.CreatedAt.IsZero() {
		override.CreatedAt = time.Now().UTC()
	}

	query, args, err := a.db.Insert("issue_overrides").
		Cols("id", "check_result_id", "issue_index", "reviewer", "reason", "created_at").
		Vals(goqu.Vals{
			override.ID,
			override.CheckResultID,
			override.IssueIndex,
			override.Reviewer,
			override.Reason,
			override.CreatedAt,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build override insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append issue override", err)
	}
	return nil
}

// ListByResult returns all overrides for one check result in creation
// order.
func (a *IssueOverrideAdapter) ListByResult(ctx context.Context, checkResultID string) ([]*entities.IssueOverride, error) {
	query, args, err := a.db.Select(
		"id",
		"check_result_id",
		"issue_index",
		"reviewer",
		"reason",
		"created_at",
	).
		From("issue_overrides").
		Where(goqu.Ex{"check_result_id": checkResultID}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build override query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list issue overrides", err)
	}
	defer rows.Close()

	var overrides []*entities.IssueOverride
	for rows.Next() {
		o := &entities.IssueOverride{}
		err := rows.Scan(&o.ID, &o.CheckResultID, &o.IssueIndex, &o.Reviewer, &o.Reason, &o.CreatedAt)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan issue override", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate issue overrides", err)
	}

	return overrides, nil
}
