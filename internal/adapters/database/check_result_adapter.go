package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

// CheckResultAdapter implements CheckResultRepository.
type CheckResultAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCheckResultAdapter creates a new adapter.
func NewCheckResultAdapter(client *postgres.Client) repositories.CheckResultRepository {
	return &CheckResultAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var checkResultColumns = []interface{}{
	"id",
	"encounter_id",
	"status",
	"summary",
	"issues",
	"fingerprint",
	"content",
	"lifecycle_status",
	"error_detail",
	"checked_by",
	"checked_at",
	"created_at",
	"updated_at",
}

// Upsert inserts or updates the result keyed by encounter id.
func (a *CheckResultAdapter) Upsert(ctx context.Context, result *entities.CheckResult) error {
	if result == nil {
		return apperrors.NewValidationError("check result is required")
	}
	if result.EncounterID == "" {
		return apperrors.NewValidationError("encounter id is required")
	}
	if result.ID == "" {
		result.ID = uuid.New().String()
	}

	issuesBytes, _ := json.Marshal(result.Issues)
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	query := `
		INSERT INTO check_results
			(id, encounter_id, status, summary, issues, fingerprint, content,
			 lifecycle_status, error_detail, checked_by, checked_at, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (encounter_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			summary = EXCLUDED.summary,
			issues = EXCLUDED.issues,
			fingerprint = EXCLUDED.fingerprint,
			content = EXCLUDED.content,
			lifecycle_status = EXCLUDED.lifecycle_status,
			error_detail = EXCLUDED.error_detail,
			checked_by = EXCLUDED.checked_by,
			checked_at = EXCLUDED.checked_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := a.client.DB().ExecContext(
		ctx,
		query,
		result.ID,
		result.EncounterID,
		result.Status,
		result.Summary,
		string(issuesBytes),
		result.Fingerprint,
		result.Content,
		result.LifecycleStatus,
		result.ErrorDetail,
		result.CheckedBy,
		result.CheckedAt,
		result.CreatedAt,
		result.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert check result", err)
	}

	return nil
}

// GetByEncounterID retrieves the result for one encounter.
func (a *CheckResultAdapter) GetByEncounterID(ctx context.Context, encounterID string) (*entities.CheckResult, error) {
	query, args, err := a.db.Select(checkResultColumns...).
		From("check_results").
		Where(goqu.Ex{"encounter_id": encounterID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build check result query", err)
	}

	result, err := a.scanOne(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("check result for encounter %s not found", encounterID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get check result", err)
	}
	return result, nil
}

// GetCompletedByFingerprint returns the newest completed result for a
// fingerprint, enabling content-based reuse across encounters.
func (a *CheckResultAdapter) GetCompletedByFingerprint(ctx context.Context, fingerprint string) (*entities.CheckResult, error) {
	query, args, err := a.db.Select(checkResultColumns...).
		From("check_results").
		Where(goqu.Ex{
			"fingerprint":      fingerprint,
			"lifecycle_status": string(entities.LifecycleCompleted),
		}).
		Order(goqu.I("checked_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build fingerprint query", err)
	}

	result, err := a.scanOne(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no completed check result for fingerprint %s", fingerprint))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get check result by fingerprint", err)
	}
	return result, nil
}

// RecentExists reports whether a result for the encounter was checked
// within the window.
func (a *CheckResultAdapter) RecentExists(ctx context.Context, encounterID string, within time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-within)

	query, args, err := a.db.Select(goqu.COUNT("id")).
		From("check_results").
		Where(goqu.Ex{"encounter_id": encounterID}).
		Where(goqu.I("checked_at").Gt(cutoff)).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build recent check query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to count recent check results", err)
	}
	return count > 0, nil
}

// MarkError records a failed analysis attempt for the encounter. A
// fresh row carries no verdict: status ok with zero issues keeps the
// ok ⇔ no-issues invariant and readers key off lifecycle_status. A
// conflicting row keeps its prior verdict untouched.
func (a *CheckResultAdapter) MarkError(ctx context.Context, encounterID, detail string) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO check_results
			(id, encounter_id, status, issues, lifecycle_status, error_detail, checked_at, created_at, updated_at)
		VALUES
			($1, $2, $3, '[]'::jsonb, $4, $5, $6, $6, $6)
		ON CONFLICT (encounter_id)
		DO UPDATE SET
			lifecycle_status = EXCLUDED.lifecycle_status,
			error_detail = EXCLUDED.error_detail,
			updated_at = EXCLUDED.updated_at
	`

	_, err := a.client.DB().ExecContext(
		ctx,
		query,
		uuid.New().String(),
		encounterID,
		entities.CheckStatusOK,
		entities.LifecycleError,
		detail,
		now,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to mark check result error", err)
	}
	return nil
}

func (a *CheckResultAdapter) scanOne(row *sql.Row) (*entities.CheckResult, error) {
	var issuesRaw []byte
	var summary, errorDetail, checkedBy sql.NullString
	result := &entities.CheckResult{}

	err := row.Scan(
		&result.ID,
		&result.EncounterID,
		&result.Status,
		&summary,
		&issuesRaw,
		&result.Fingerprint,
		&result.Content,
		&result.LifecycleStatus,
		&errorDetail,
		&checkedBy,
		&result.CheckedAt,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	result.Summary = summary.String
	result.ErrorDetail = errorDetail.String
	result.CheckedBy = checkedBy.String

	if len(issuesRaw) > 0 {
		_ = json.Unmarshal(issuesRaw, &result.Issues)
	}

	return result, nil
}
