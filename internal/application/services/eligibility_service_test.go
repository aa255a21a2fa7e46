package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

func eligibilityFixture(t *testing.T) (*EligibilityService, *MockEHRClient, *MockEligibilityRepo, *MockJobQueue, *MockEventBus) {
	t.Helper()

	ehrClient := new(MockEHRClient)
	tokenRepo := new(MockTokenRepo)
	eligibilityRepo := new(MockEligibilityRepo)
	jobQueue := new(MockJobQueue)
	bus := new(MockEventBus)

	tokenRepo.On("Get", mock.Anything, "svc").Return(&entities.ProviderToken{
		Identity:    "svc",
		AccessToken: "token",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}, nil)

	cfg := config.JobsConfig{
		DiscoveryCap:      1000,
		EligibilityWindow: 24 * time.Hour,
		Stagger:           15 * time.Second,
	}
	tokens := NewTokenService(ehrClient, tokenRepo, "svc", "secret")
	service := NewEligibilityService(ehrClient, tokens, eligibilityRepo, jobQueue, bus, cfg, 50)
	return service, ehrClient, eligibilityRepo, jobQueue, bus
}

func TestEligibilityCycle_QueuesUpcomingAppointments(t *testing.T) {
	service, ehrClient, eligibilityRepo, jobQueue, _ := eligibilityFixture(t)
	ctx := context.Background()

	encounters := []entities.Encounter{
		// Tomorrow morning, payer on file: queued.
		{ID: "enc-1", PatientID: "pat-1", ServiceDate: time.Now().UTC().Add(12 * time.Hour), Status: entities.EncounterStatusScheduled, PayerOnFile: true},
		// Beyond the 24h window.
		{ID: "enc-2", PatientID: "pat-2", ServiceDate: time.Now().UTC().Add(48 * time.Hour), Status: entities.EncounterStatusScheduled, PayerOnFile: true},
		// No payer on file.
		{ID: "enc-3", PatientID: "pat-3", ServiceDate: time.Now().UTC().Add(12 * time.Hour), Status: entities.EncounterStatusScheduled, PayerOnFile: false},
		// Already happened.
		{ID: "enc-4", PatientID: "pat-4", ServiceDate: time.Now().UTC().Add(-time.Hour), Status: entities.EncounterStatusScheduled, PayerOnFile: true},
	}
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 0, Limit: 50}).
		Return(&ehr.ListEncountersResponse{Data: encounters}, nil)
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 4, Limit: 50}).
		Return(&ehr.ListEncountersResponse{}, nil)

	eligibilityRepo.On("RecentExists", mock.Anything, "enc-1", mock.Anything).Return(false, nil)
	eligibilityRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(check *entities.EligibilityCheck) bool {
		return check.EncounterID == "enc-1" && check.Status == entities.EligibilityQueued
	})).Return(nil)
	jobQueue.On("Enqueue", mock.Anything, mock.MatchedBy(func(job *entities.Job) bool {
		return job.Type == entities.JobTypeEligibilityCheck &&
			job.EncounterID == "enc-1" &&
			job.PatientID == "pat-1" &&
			job.CoverageDate != nil
	}), time.Duration(0)).Return(nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 4, summary.Scanned)
	assert.Equal(t, 1, summary.Queued)
	eligibilityRepo.AssertExpectations(t)
	jobQueue.AssertExpectations(t)
}

func TestEligibilityCycle_ExistingCheckNotRequeued(t *testing.T) {
	service, ehrClient, eligibilityRepo, jobQueue, _ := eligibilityFixture(t)
	ctx := context.Background()

	encounters := []entities.Encounter{
		{ID: "enc-1", PatientID: "pat-1", ServiceDate: time.Now().UTC().Add(12 * time.Hour), Status: entities.EncounterStatusScheduled, PayerOnFile: true},
	}
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 0, Limit: 50}).
		Return(&ehr.ListEncountersResponse{Data: encounters}, nil)
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 1, Limit: 50}).
		Return(&ehr.ListEncountersResponse{}, nil)

	eligibilityRepo.On("RecentExists", mock.Anything, "enc-1", mock.Anything).Return(true, nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, summary.Queued)
	assert.Equal(t, 1, summary.Skipped)
	jobQueue.AssertNotCalled(t, "Enqueue")
	eligibilityRepo.AssertNotCalled(t, "Upsert")
}

func TestEligibilityCycle_MissingPatientRecordedAsError(t *testing.T) {
	service, ehrClient, eligibilityRepo, jobQueue, _ := eligibilityFixture(t)
	ctx := context.Background()

	encounters := []entities.Encounter{
		{ID: "enc-1", PatientID: "", ServiceDate: time.Now().UTC().Add(12 * time.Hour), Status: entities.EncounterStatusScheduled, PayerOnFile: true},
	}
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 0, Limit: 50}).
		Return(&ehr.ListEncountersResponse{Data: encounters}, nil)
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 1, Limit: 50}).
		Return(&ehr.ListEncountersResponse{}, nil)

	eligibilityRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(check *entities.EligibilityCheck) bool {
		return check.EncounterID == "enc-1" && check.Status == entities.EligibilityError
	})).Return(nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, summary.Queued)
	jobQueue.AssertNotCalled(t, "Enqueue")
	eligibilityRepo.AssertExpectations(t)
}

func TestVerify_ActiveCoverage(t *testing.T) {
	service, ehrClient, eligibilityRepo, _, bus := eligibilityFixture(t)
	ctx := context.Background()

	coverageDate := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	job := &entities.Job{
		Type:         entities.JobTypeEligibilityCheck,
		EncounterID:  "enc-1",
		PatientID:    "pat-1",
		CoverageDate: &coverageDate,
	}

	ehrClient.On("GetCoverage", mock.Anything, "token", "pat-1").
		Return(&ehr.CoverageResponse{Active: true, PayerID: "payer-1"}, nil)
	eligibilityRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(check *entities.EligibilityCheck) bool {
		return check.Status == entities.EligibilityVerified && check.CheckedAt != nil
	})).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelEligibility, mock.Anything).Return(nil)

	err := service.Verify(ctx, job)

	assert.NoError(t, err)
	eligibilityRepo.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestVerify_InactiveCoverage(t *testing.T) {
	service, ehrClient, eligibilityRepo, _, bus := eligibilityFixture(t)
	ctx := context.Background()

	coverageDate := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	job := &entities.Job{
		Type:         entities.JobTypeEligibilityCheck,
		EncounterID:  "enc-1",
		PatientID:    "pat-1",
		CoverageDate: &coverageDate,
	}

	ehrClient.On("GetCoverage", mock.Anything, "token", "pat-1").
		Return(&ehr.CoverageResponse{Active: false, Detail: "policy lapsed"}, nil)
	eligibilityRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(check *entities.EligibilityCheck) bool {
		return check.Status == entities.EligibilityInactive && check.Detail == "policy lapsed"
	})).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelEligibility, mock.Anything).Return(nil)

	err := service.Verify(ctx, job)

	assert.NoError(t, err)
	eligibilityRepo.AssertExpectations(t)
}

func TestVerify_TransientFailurePropagatesWithoutErrorRow(t *testing.T) {
	service, ehrClient, eligibilityRepo, _, _ := eligibilityFixture(t)
	ctx := context.Background()

	coverageDate := time.Now().UTC()
	job := &entities.Job{
		Type:         entities.JobTypeEligibilityCheck,
		EncounterID:  "enc-1",
		PatientID:    "pat-1",
		CoverageDate: &coverageDate,
	}

	ehrClient.On("GetCoverage", mock.Anything, "token", "pat-1").
		Return(nil, apperrors.NewTransientError("ehr request failed with status 503", nil))

	err := service.Verify(ctx, job)

	assert.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	eligibilityRepo.AssertNotCalled(t, "Upsert")
}

func TestVerify_MissingPayloadIsFatal(t *testing.T) {
	service, _, _, _, _ := eligibilityFixture(t)

	err := service.Verify(context.Background(), &entities.Job{EncounterID: "enc-1"})

	assert.Error(t, err)
	assert.False(t, apperrors.IsTransient(err))
}
