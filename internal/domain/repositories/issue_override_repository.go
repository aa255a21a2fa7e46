package repositories

import (
	"context"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// IssueOverrideRepository records human review overrides. Append-only:
// an override never mutates the issue it concerns.
type IssueOverrideRepository interface {
	// Append records a new override.
	Append(ctx context.Context, override *entities.IssueOverride) error

	// ListByResult returns all overrides for one check result in
	// creation order.
	ListByResult(ctx context.Context, checkResultID string) ([]*entities.IssueOverride, error)
}
