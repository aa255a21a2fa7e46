package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// EligibilityRepository persists insurance eligibility checks.
type EligibilityRepository interface {
	// Upsert inserts or replaces the check keyed by
	// (encounter id, coverage date).
	Upsert(ctx context.Context, check *entities.EligibilityCheck) error

	// RecentExists reports whether a check for the encounter and
	// coverage date already exists.
	RecentExists(ctx context.Context, encounterID string, coverageDate time.Time) (bool, error)
}
