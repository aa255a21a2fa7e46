package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
)

// Mocks

type MockEHRClient struct {
	mock.Mock
}

func (m *MockEHRClient) Login(ctx context.Context, identity, secret string) (*ehr.LoginResponse, error) {
	args := m.Called(ctx, identity, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ehr.LoginResponse), args.Error(1)
}

func (m *MockEHRClient) Refresh(ctx context.Context, refreshToken string) (*ehr.RefreshResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ehr.RefreshResponse), args.Error(1)
}

func (m *MockEHRClient) ListEncounters(ctx context.Context, token string, req ehr.ListEncountersRequest) (*ehr.ListEncountersResponse, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ehr.ListEncountersResponse), args.Error(1)
}

func (m *MockEHRClient) GetNote(ctx context.Context, token, encounterID string) (*entities.NoteDocument, error) {
	args := m.Called(ctx, token, encounterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.NoteDocument), args.Error(1)
}

func (m *MockEHRClient) GetCareTeam(ctx context.Context, token, encounterID string) ([]entities.CareTeamRole, error) {
	args := m.Called(ctx, token, encounterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.CareTeamRole), args.Error(1)
}

func (m *MockEHRClient) CreateTask(ctx context.Context, token string, req ehr.CreateTaskRequest) (string, error) {
	args := m.Called(ctx, token, req)
	return args.String(0), args.Error(1)
}

func (m *MockEHRClient) GetTaskStatus(ctx context.Context, token, taskID string) (string, error) {
	args := m.Called(ctx, token, taskID)
	return args.String(0), args.Error(1)
}

func (m *MockEHRClient) GetCoverage(ctx context.Context, token, patientID string) (*ehr.CoverageResponse, error) {
	args := m.Called(ctx, token, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ehr.CoverageResponse), args.Error(1)
}

type MockTokenRepo struct {
	mock.Mock
}

func (m *MockTokenRepo) Get(ctx context.Context, identity string) (*entities.ProviderToken, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProviderToken), args.Error(1)
}

func (m *MockTokenRepo) Upsert(ctx context.Context, token *entities.ProviderToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type MockCheckResultRepo struct {
	mock.Mock
}

func (m *MockCheckResultRepo) Upsert(ctx context.Context, result *entities.CheckResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockCheckResultRepo) GetByEncounterID(ctx context.Context, encounterID string) (*entities.CheckResult, error) {
	args := m.Called(ctx, encounterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CheckResult), args.Error(1)
}

func (m *MockCheckResultRepo) GetCompletedByFingerprint(ctx context.Context, fingerprint string) (*entities.CheckResult, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CheckResult), args.Error(1)
}

func (m *MockCheckResultRepo) RecentExists(ctx context.Context, encounterID string, within time.Duration) (bool, error) {
	args := m.Called(ctx, encounterID, within)
	return args.Bool(0), args.Error(1)
}

func (m *MockCheckResultRepo) MarkError(ctx context.Context, encounterID, detail string) error {
	args := m.Called(ctx, encounterID, detail)
	return args.Error(0)
}

type MockCreatedTaskRepo struct {
	mock.Mock
}

func (m *MockCreatedTaskRepo) Upsert(ctx context.Context, task *entities.RemediationTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockCreatedTaskRepo) ListOpen(ctx context.Context, limit int) ([]*entities.RemediationTask, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.RemediationTask), args.Error(1)
}

func (m *MockCreatedTaskRepo) UpdateCompletion(ctx context.Context, taskID string, status entities.TaskCompletionStatus) error {
	args := m.Called(ctx, taskID, status)
	return args.Error(0)
}

type MockEligibilityRepo struct {
	mock.Mock
}

func (m *MockEligibilityRepo) Upsert(ctx context.Context, check *entities.EligibilityCheck) error {
	args := m.Called(ctx, check)
	return args.Error(0)
}

func (m *MockEligibilityRepo) RecentExists(ctx context.Context, encounterID string, coverageDate time.Time) (bool, error) {
	args := m.Called(ctx, encounterID, coverageDate)
	return args.Bool(0), args.Error(1)
}

type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job *entities.Job, delay time.Duration) error {
	args := m.Called(ctx, job, delay)
	return args.Error(0)
}

func (m *MockJobQueue) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.PipelineEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.PipelineEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.PipelineEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockChatCompleter struct {
	mock.Mock
}

func (m *MockChatCompleter) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, model, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}
