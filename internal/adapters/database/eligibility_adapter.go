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

// EligibilityAdapter implements EligibilityRepository.
type EligibilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEligibilityAdapter creates a new adapter.
func NewEligibilityAdapter(client *postgres.Client) repositories.EligibilityRepository {
	return &EligibilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert inserts or replaces the check keyed by
// (encounter_id, coverage_date).
func (a *EligibilityAdapter) Upsert(ctx context.Context, check *entities.EligibilityCheck) error {
	if check == nil {
		return apperrors.NewValidationError("eligibility check is required")
	}
	if check.ID == "" {
		check.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if check.CreatedAt.IsZero() {
		check.CreatedAt = now
	}
	check.UpdatedAt = now

	query := `
		INSERT INTO eligibility_checks
			(id, encounter_id, patient_id, coverage_date, status, detail, checked_at, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (encounter_id, coverage_date)
		DO UPDATE SET
			status = EXCLUDED.status,
			detail = EXCLUDED.detail,
			checked_at = EXCLUDED.checked_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := a.client.DB().ExecContext(
		ctx,
		query,
		check.ID,
		check.EncounterID,
		check.PatientID,
		check.CoverageDate,
		check.Status,
		check.Detail,
		check.CheckedAt,
		check.CreatedAt,
		check.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert eligibility check", err)
	}
	return nil
}

// RecentExists reports whether a check for the encounter and coverage
// date already exists.
func (a *EligibilityAdapter) RecentExists(ctx context.Context, encounterID string, coverageDate time.Time) (bool, error) {
	query, args, err := a.db.Select(goqu.COUNT("id")).
		From("eligibility_checks").
		Where(goqu.Ex{
			"encounter_id":  encounterID,
			"coverage_date": coverageDate,
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build eligibility query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to count eligibility checks", err)
	}
	return count > 0, nil
}
