package repositories

import (
	"context"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// TokenRepository persists upstream credential state. Only the token
// lifecycle service writes through this interface.
type TokenRepository interface {
	// Get retrieves the stored token for one identity.
	Get(ctx context.Context, identity string) (*entities.ProviderToken, error)

	// Upsert inserts or replaces the token keyed by identity.
	Upsert(ctx context.Context, token *entities.ProviderToken) error
}
