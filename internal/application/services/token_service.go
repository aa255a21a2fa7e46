package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

// tokenSkew is subtracted from the stored expiry so a token about to
// expire mid-request is treated as already expired.
const tokenSkew = 60 * time.Second

// defaultTokenTTL applies when upstream omits expiresIn.
const defaultTokenTTL = 55 * time.Minute

// TokenService owns the upstream credential lifecycle for one service
// identity. Acquisition runs three tiers: cached token, refresh-token
// exchange, full login. No other component writes token state.
type TokenService struct {
	ehrClient ehr.Client
	tokenRepo repositories.TokenRepository
	identity  string
	secret    string
	logger    zerolog.Logger
}

// NewTokenService creates a new token lifecycle service.
func NewTokenService(ehrClient ehr.Client, tokenRepo repositories.TokenRepository, identity, secret string) *TokenService {
	return &TokenService{
		ehrClient: ehrClient,
		tokenRepo: tokenRepo,
		identity:  identity,
		secret:    secret,
		logger:    observability.ComponentLogger("tokens"),
	}
}

// GetValidToken returns a usable upstream token, falling through the
// tiers on failure. Exhaustion of all three tiers is fatal for the
// calling job cycle; the next scheduled cycle starts again at tier 1.
func (s *TokenService) GetValidToken(ctx context.Context) (*entities.ProviderToken, error) {
	now := time.Now().UTC()

	// Tier 1: cached token still valid.
	stored, err := s.tokenRepo.Get(ctx, s.identity)
	if err == nil && stored.AccessToken != "" && !stored.Expired(now, tokenSkew) {
		return stored, nil
	}
	if err != nil && !apperrors.IsNotFound(err) {
		s.logger.Warn().Err(err).Msg("token read failed, falling through to refresh")
	}

	// Tier 2: refresh-token exchange, ignoring stored expiry.
	if stored != nil && stored.RefreshToken != "" {
		refreshed, refreshErr := s.refresh(ctx, stored)
		if refreshErr == nil {
			return refreshed, nil
		}
		s.logger.Warn().Err(refreshErr).Msg("token refresh failed, falling through to login")
	}

	// Tier 3: full login.
	token, loginErr := s.login(ctx)
	if loginErr != nil {
		return nil, apperrors.NewUnauthorizedError("token acquisition exhausted all tiers: " + loginErr.Error())
	}
	return token, nil
}

func (s *TokenService) refresh(ctx context.Context, stored *entities.ProviderToken) (*entities.ProviderToken, error) {
	resp, err := s.ehrClient.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return nil, err
	}

	token := &entities.ProviderToken{
		Identity:     s.identity,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Endpoint:     stored.Endpoint,
		ExpiresAt:    expiryFrom(resp.ExpiresIn),
	}
	// Upstream does not always rotate refresh tokens.
	if token.RefreshToken == "" {
		token.RefreshToken = stored.RefreshToken
	}

	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *TokenService) login(ctx context.Context) (*entities.ProviderToken, error) {
	resp, err := s.ehrClient.Login(ctx, s.identity, s.secret)
	if err != nil {
		return nil, err
	}

	token := &entities.ProviderToken{
		Identity:     s.identity,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Endpoint:     resp.Endpoint,
		ExpiresAt:    expiryFrom(resp.ExpiresIn),
	}

	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func expiryFrom(expiresIn int) time.Time {
	if expiresIn <= 0 {
		return time.Now().UTC().Add(defaultTokenTTL)
	}
	return time.Now().UTC().Add(time.Duration(expiresIn) * time.Second)
}
