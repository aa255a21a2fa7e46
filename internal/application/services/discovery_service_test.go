package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
)

func discoveryJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		DiscoveryCap:  1000,
		NoteStaleness: 2 * time.Hour,
		ReuseWindow:   6 * time.Hour,
		Stagger:       15 * time.Second,
	}
}

func discoveryFixture(t *testing.T, cfg config.JobsConfig) (*DiscoveryService, *MockEHRClient, *MockCheckResultRepo, *MockJobQueue) {
	t.Helper()

	ehrClient := new(MockEHRClient)
	tokenRepo := new(MockTokenRepo)
	resultRepo := new(MockCheckResultRepo)
	jobQueue := new(MockJobQueue)

	tokenRepo.On("Get", mock.Anything, "svc").Return(&entities.ProviderToken{
		Identity:    "svc",
		AccessToken: "token",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}, nil)

	tokens := NewTokenService(ehrClient, tokenRepo, "svc", "secret")
	service := NewDiscoveryService(ehrClient, tokens, resultRepo, jobQueue, cfg, 50)
	return service, ehrClient, resultRepo, jobQueue
}

func staleEncounter(id, patientID string) entities.Encounter {
	return entities.Encounter{
		ID:          id,
		PatientID:   patientID,
		ServiceDate: time.Now().UTC().Add(-3 * time.Hour),
		Status:      entities.EncounterStatusUnsigned,
	}
}

func TestDiscovery_QueuesStaleUnsignedEncounters(t *testing.T) {
	service, ehrClient, resultRepo, jobQueue := discoveryFixture(t, discoveryJobsConfig())
	ctx := context.Background()

	encounters := []entities.Encounter{
		staleEncounter("enc-1", "pat-1"),
		// Signed already: not awaiting finalization.
		{ID: "enc-2", PatientID: "pat-2", ServiceDate: time.Now().UTC().Add(-3 * time.Hour), Status: entities.EncounterStatusSigned},
		// Too fresh: inside the staleness threshold.
		{ID: "enc-3", PatientID: "pat-3", ServiceDate: time.Now().UTC().Add(-30 * time.Minute), Status: entities.EncounterStatusUnsigned},
	}
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 0, Limit: 50}).
		Return(&ehr.ListEncountersResponse{Data: encounters}, nil)
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 3, Limit: 50}).
		Return(&ehr.ListEncountersResponse{}, nil)

	resultRepo.On("RecentExists", mock.Anything, "enc-1", 6*time.Hour).Return(false, nil)
	jobQueue.On("Enqueue", mock.Anything, mock.MatchedBy(func(job *entities.Job) bool {
		return job.Type == entities.JobTypeNoteCheck &&
			job.EncounterID == "enc-1" &&
			job.PatientID == "pat-1" &&
			!job.Force &&
			job.TriggeredBy == "discovery"
	}), time.Duration(0)).Return(nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 1, summary.Eligible)
	assert.Equal(t, 1, summary.Queued)
	jobQueue.AssertExpectations(t)
}

func TestDiscovery_RecentResultSkipsEnqueue(t *testing.T) {
	service, ehrClient, resultRepo, jobQueue := discoveryFixture(t, discoveryJobsConfig())
	ctx := context.Background()

	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 0, Limit: 50}).
		Return(&ehr.ListEncountersResponse{Data: []entities.Encounter{staleEncounter("enc-1", "pat-1")}}, nil)
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 1, Limit: 50}).
		Return(&ehr.ListEncountersResponse{}, nil)

	resultRepo.On("RecentExists", mock.Anything, "enc-1", 6*time.Hour).Return(true, nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Eligible)
	assert.Equal(t, 0, summary.Queued)
	assert.Equal(t, 1, summary.Skipped)
	jobQueue.AssertNotCalled(t, "Enqueue")
}

func TestDiscovery_MissingIdentifiersSkipped(t *testing.T) {
	service, ehrClient, resultRepo, jobQueue := discoveryFixture(t, discoveryJobsConfig())
	ctx := context.Background()

	encounters := []entities.Encounter{
		{ID: "", PatientID: "pat-1", ServiceDate: time.Now().UTC().Add(-3 * time.Hour), Status: entities.EncounterStatusUnsigned},
		{ID: "enc-2", PatientID: "", ServiceDate: time.Now().UTC().Add(-3 * time.Hour), Status: entities.EncounterStatusUnsigned},
	}
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 0, Limit: 50}).
		Return(&ehr.ListEncountersResponse{Data: encounters}, nil)
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 2, Limit: 50}).
		Return(&ehr.ListEncountersResponse{}, nil)

	// A keyable encounter with no patient is recorded so later cycles
	// don't re-evaluate it as a fresh candidate.
	resultRepo.On("MarkError", mock.Anything, "enc-2", "encounter missing patient identifier").Return(nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Queued)
	jobQueue.AssertNotCalled(t, "Enqueue")
	resultRepo.AssertExpectations(t)
	resultRepo.AssertNumberOfCalls(t, "MarkError", 1)
}

func TestDiscovery_StaggersEnqueueDelays(t *testing.T) {
	service, ehrClient, resultRepo, jobQueue := discoveryFixture(t, discoveryJobsConfig())
	ctx := context.Background()

	encounters := []entities.Encounter{
		staleEncounter("enc-1", "pat-1"),
		staleEncounter("enc-2", "pat-2"),
		staleEncounter("enc-3", "pat-3"),
	}
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 0, Limit: 50}).
		Return(&ehr.ListEncountersResponse{Data: encounters}, nil)
	ehrClient.On("ListEncounters", mock.Anything, "token", ehr.ListEncountersRequest{Offset: 3, Limit: 50}).
		Return(&ehr.ListEncountersResponse{}, nil)

	resultRepo.On("RecentExists", mock.Anything, mock.Anything, 6*time.Hour).Return(false, nil)

	var delays []time.Duration
	jobQueue.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		delays = append(delays, args.Get(2).(time.Duration))
	}).Return(nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 3, summary.Queued)
	assert.Equal(t, []time.Duration{0, 15 * time.Second, 30 * time.Second}, delays)
}

func TestDiscovery_StopsAtSafetyCap(t *testing.T) {
	cfg := discoveryJobsConfig()
	cfg.DiscoveryCap = 5
	service, ehrClient, resultRepo, jobQueue := discoveryFixture(t, cfg)
	ctx := context.Background()

	// The feed keeps returning full pages; without the cap this would
	// never terminate.
	page := make([]entities.Encounter, 50)
	for i := range page {
		page[i] = staleEncounter("enc-x", "pat-x")
	}
	ehrClient.On("ListEncounters", mock.Anything, "token", mock.Anything).
		Return(&ehr.ListEncountersResponse{Data: page}, nil)

	resultRepo.On("RecentExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	jobQueue.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	summary, err := service.RunCycle(ctx)

	assert.NoError(t, err)
	assert.True(t, summary.CapReached)
	assert.Equal(t, 5, summary.Scanned)
}

func TestDiscovery_PageFetchErrorAbortsCycle(t *testing.T) {
	service, ehrClient, _, jobQueue := discoveryFixture(t, discoveryJobsConfig())
	ctx := context.Background()

	ehrClient.On("ListEncounters", mock.Anything, "token", mock.Anything).
		Return(nil, assert.AnError)

	_, err := service.RunCycle(ctx)

	assert.Error(t, err)
	jobQueue.AssertNotCalled(t, "Enqueue")
}
