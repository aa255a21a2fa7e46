package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

func analysisFixture(t *testing.T) (*AnalysisService, *MockEHRClient, *MockTokenRepo, *MockCheckResultRepo, *MockChatCompleter, *MockEventBus) {
	t.Helper()

	ehrClient := new(MockEHRClient)
	tokenRepo := new(MockTokenRepo)
	resultRepo := new(MockCheckResultRepo)
	completer := new(MockChatCompleter)
	bus := new(MockEventBus)

	tokenRepo.On("Get", mock.Anything, "svc").Return(&entities.ProviderToken{
		Identity:    "svc",
		AccessToken: "token",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}, nil)

	tokens := NewTokenService(ehrClient, tokenRepo, "svc", "secret")
	service := NewAnalysisService(
		ehrClient, tokens, resultRepo, completer, bus, nil,
		NewAnalysisModels("model-c", "model-p", "model-s"),
	)
	return service, ehrClient, tokenRepo, resultRepo, completer, bus
}

func cleanNote() *entities.NoteDocument {
	return &entities.NoteDocument{
		EncounterID: "enc-1",
		Sections: []entities.NoteSection{
			{Name: entities.SectionHPI, Text: "Itchy rash on both forearms for two weeks."},
			{Name: entities.SectionVitals, Text: "Height: 170cm Weight: 65kg"},
			{Name: entities.SectionAP, Text: "Contact dermatitis. Start triamcinolone cream, follow up in 4 weeks."},
		},
	}
}

func TestAnalyze_AllChecksPass(t *testing.T) {
	service, ehrClient, _, resultRepo, completer, bus := analysisFixture(t)
	ctx := context.Background()

	doc := cleanNote()
	ehrClient.On("GetNote", mock.Anything, "token", "enc-1").Return(doc, nil)
	resultRepo.On("GetCompletedByFingerprint", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewNotFoundError("no match"))

	completer.On("Complete", mock.Anything, "model-c", mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)
	completer.On("Complete", mock.Anything, "model-p", mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)
	completer.On("Complete", mock.Anything, "model-s", mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)

	resultRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(result *entities.CheckResult) bool {
		return result.EncounterID == "enc-1" &&
			result.Status == entities.CheckStatusOK &&
			result.LifecycleStatus == entities.LifecycleCompleted &&
			len(result.Issues) == 0 &&
			result.Fingerprint != ""
	})).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelChecks, mock.Anything).Return(nil)

	result, err := service.Analyze(ctx, "enc-1", false, "discovery")

	assert.NoError(t, err)
	assert.Equal(t, entities.CheckStatusOK, result.Status)
	resultRepo.AssertExpectations(t)
	completer.AssertExpectations(t)
}

func TestAnalyze_IssuesMergedAcrossChecks(t *testing.T) {
	service, ehrClient, _, resultRepo, completer, bus := analysisFixture(t)
	ctx := context.Background()

	doc := cleanNote()
	// No vitals documented: the local check contributes an issue too.
	doc.Sections[1].Text = "BP 120/80"
	ehrClient.On("GetNote", mock.Anything, "token", "enc-1").Return(doc, nil)
	resultRepo.On("GetCompletedByFingerprint", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewNotFoundError("no match"))

	completer.On("Complete", mock.Anything, "model-c", mock.Anything, mock.Anything).
		Return(`{"status": "corrections_needed", "issues": [{"assessment": "Contact dermatitis", "issue": "chronicity_mismatch", "details": {"HPI": "two weeks", "A&P": "chronic", "correction": "Fix chronicity."}}]}`, nil)
	completer.On("Complete", mock.Anything, "model-p", mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)
	completer.On("Complete", mock.Anything, "model-s", mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)

	var stored *entities.CheckResult
	resultRepo.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*entities.CheckResult)
	}).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelChecks, mock.Anything).Return(nil)

	result, err := service.Analyze(ctx, "enc-1", false, "discovery")

	assert.NoError(t, err)
	assert.Equal(t, entities.CheckStatusCorrectionsNeeded, result.Status)
	assert.Len(t, result.Issues, 2)
	assert.Contains(t, result.Summary, "2 issue(s)")
	assert.Contains(t, result.Summary, "chronicity_mismatch")
	assert.Contains(t, result.Summary, "unclear_documentation")
	assert.Equal(t, stored, result)
}

func TestAnalyze_FingerprintReuseSkipsModelCalls(t *testing.T) {
	service, ehrClient, _, resultRepo, completer, bus := analysisFixture(t)
	ctx := context.Background()

	doc := cleanNote()
	ehrClient.On("GetNote", mock.Anything, "token", "enc-2").Return(doc, nil)

	match := &entities.CheckResult{
		ID:              "res-1",
		EncounterID:     "enc-1",
		Status:          entities.CheckStatusCorrectionsNeeded,
		Summary:         "1 issue(s): no_explicit_plan",
		Issues:          []entities.Issue{{Assessment: "Acne", Category: entities.IssueNoExplicitPlan}},
		LifecycleStatus: entities.LifecycleCompleted,
	}
	resultRepo.On("GetCompletedByFingerprint", mock.Anything, mock.Anything).Return(match, nil)

	resultRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(result *entities.CheckResult) bool {
		return result.EncounterID == "enc-2" &&
			result.CheckedBy == checkedByReuse &&
			result.Status == entities.CheckStatusCorrectionsNeeded &&
			result.ID != "res-1"
	})).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelChecks, mock.Anything).Return(nil)

	result, err := service.Analyze(ctx, "enc-2", false, "discovery")

	assert.NoError(t, err)
	assert.Equal(t, "enc-2", result.EncounterID)
	assert.Len(t, result.Issues, 1)
	completer.AssertNotCalled(t, "Complete")
	resultRepo.AssertExpectations(t)
}

func TestAnalyze_ForceBypassesFingerprintReuse(t *testing.T) {
	service, ehrClient, _, resultRepo, completer, bus := analysisFixture(t)
	ctx := context.Background()

	ehrClient.On("GetNote", mock.Anything, "token", "enc-1").Return(cleanNote(), nil)

	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)
	resultRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelChecks, mock.Anything).Return(nil)

	_, err := service.Analyze(ctx, "enc-1", true, "completion_poll")

	assert.NoError(t, err)
	resultRepo.AssertNotCalled(t, "GetCompletedByFingerprint")
}

func TestAnalyze_NoteFetchFailureMarksError(t *testing.T) {
	service, ehrClient, _, resultRepo, _, _ := analysisFixture(t)
	ctx := context.Background()

	cause := apperrors.NewTransientError("ehr request failed with status 503", nil)
	ehrClient.On("GetNote", mock.Anything, "token", "enc-1").Return(nil, cause)
	resultRepo.On("MarkError", mock.Anything, "enc-1", mock.Anything).Return(nil)

	result, err := service.Analyze(ctx, "enc-1", false, "discovery")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsTransient(err))
	resultRepo.AssertExpectations(t)
}

func TestAnalyze_CheckProviderFailureAbortsAnalysis(t *testing.T) {
	service, ehrClient, _, resultRepo, completer, _ := analysisFixture(t)
	ctx := context.Background()

	ehrClient.On("GetNote", mock.Anything, "token", "enc-1").Return(cleanNote(), nil)
	resultRepo.On("GetCompletedByFingerprint", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewNotFoundError("no match"))

	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", apperrors.NewTransientError("openai overloaded with status 429", nil))
	resultRepo.On("MarkError", mock.Anything, "enc-1", mock.Anything).Return(nil)

	result, err := service.Analyze(ctx, "enc-1", false, "discovery")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsTransient(err))
	resultRepo.AssertNotCalled(t, "Upsert")
}

func TestAnalyze_MalformedCheckOutputDegrades(t *testing.T) {
	service, ehrClient, _, resultRepo, completer, bus := analysisFixture(t)
	ctx := context.Background()

	ehrClient.On("GetNote", mock.Anything, "token", "enc-1").Return(cleanNote(), nil)
	resultRepo.On("GetCompletedByFingerprint", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewNotFoundError("no match"))

	completer.On("Complete", mock.Anything, "model-c", mock.Anything, mock.Anything).
		Return("I could not produce valid JSON, sorry.", nil)
	completer.On("Complete", mock.Anything, "model-p", mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)
	completer.On("Complete", mock.Anything, "model-s", mock.Anything, mock.Anything).Return(`{"status": "ok"}`, nil)

	resultRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	bus.On("Publish", mock.Anything, providers.EventChannelChecks, mock.Anything).Return(nil)

	result, err := service.Analyze(ctx, "enc-1", false, "discovery")

	assert.NoError(t, err)
	assert.Equal(t, entities.CheckStatusCorrectionsNeeded, result.Status)
	assert.Len(t, result.Issues, 1)
	assert.Equal(t, entities.IssueUnclearDocumentation, result.Issues[0].Category)
}
