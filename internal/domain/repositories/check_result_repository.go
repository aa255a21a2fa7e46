package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// CheckResultRepository persists documentation check outcomes.
type CheckResultRepository interface {
	// Upsert inserts or replaces the result keyed by encounter id.
	Upsert(ctx context.Context, result *entities.CheckResult) error

	// GetByEncounterID retrieves the result for one encounter.
	GetByEncounterID(ctx context.Context, encounterID string) (*entities.CheckResult, error)

	// GetCompletedByFingerprint returns the newest completed result
	// whose analyzed content hashes to the given fingerprint.
	GetCompletedByFingerprint(ctx context.Context, fingerprint string) (*entities.CheckResult, error)

	// RecentExists reports whether a result for the encounter was
	// checked within the given window.
	RecentExists(ctx context.Context, encounterID string, within time.Duration) (bool, error)

	// MarkError records a failed analysis attempt for the encounter.
	MarkError(ctx context.Context, encounterID, detail string) error
}
