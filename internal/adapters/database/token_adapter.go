package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

// TokenAdapter implements TokenRepository.
type TokenAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTokenAdapter creates a new adapter.
func NewTokenAdapter(client *postgres.Client) repositories.TokenRepository {
	return &TokenAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Get retrieves the stored token for one identity.
func (a *TokenAdapter) Get(ctx context.Context, identity string) (*entities.ProviderToken, error) {
	query, args, err := a.db.Select(
		"identity",
		"access_token",
		"refresh_token",
		"endpoint",
		"expires_at",
		"updated_at",
	).
		From("tokens").
		Where(goqu.Ex{"identity": identity}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build token query", err)
	}

	var refreshToken, endpoint sql.NullString
	token := &entities.ProviderToken{}

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&token.Identity,
		&token.AccessToken,
		&refreshToken,
		&endpoint,
		&token.ExpiresAt,
		&token.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("token for identity %s not found", identity))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get token", err)
	}

	token.RefreshToken = refreshToken.String
	token.Endpoint = endpoint.String
	return token, nil
}

// Upsert inserts or replaces the token keyed by identity.
func (a *TokenAdapter) Upsert(ctx context.Context, token *entities.ProviderToken) error {
	if token == nil || token.Identity == "" {
		return apperrors.NewValidationError("token identity is required")
	}
	token.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO tokens
			(identity, access_token, refresh_token, endpoint, expires_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			endpoint = EXCLUDED.endpoint,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := a.client.DB().ExecContext(
		ctx,
		query,
		token.Identity,
		token.AccessToken,
		token.RefreshToken,
		token.Endpoint,
		token.ExpiresAt,
		token.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert token", err)
	}
	return nil
}
