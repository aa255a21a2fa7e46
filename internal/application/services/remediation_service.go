package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/providers"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/repositories"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/clients/ehr"
	"github.com/zatekoja/Chartreviewautomation/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

const openTaskPollBatch = 100

// PollSummary reports one completion polling pass.
type PollSummary struct {
	Polled    int
	Completed int
	NotFound  int
	Requeued  int
	Failed    int
}

// RemediationService turns check results with issues into upstream
// tasks for the care team and polls those tasks for completion.
type RemediationService struct {
	ehrClient ehr.Client
	tokens    *TokenService
	tasks     repositories.CreatedTaskRepository
	queue     providers.JobQueue
	bus       providers.EventBus
	logger    zerolog.Logger
}

// NewRemediationService creates a new remediation service.
func NewRemediationService(
	ehrClient ehr.Client,
	tokens *TokenService,
	tasks repositories.CreatedTaskRepository,
	queue providers.JobQueue,
	bus providers.EventBus,
) *RemediationService {
	return &RemediationService{
		ehrClient: ehrClient,
		tokens:    tokens,
		tasks:     tasks,
		queue:     queue,
		bus:       bus,
		logger:    observability.ComponentLogger("remediation"),
	}
}

// CreateForResult creates an upstream task carrying the result's
// issues, assigned per the encounter's care team. The stored record is
// keyed on (encounter, check result), so re-running for the same
// result replaces rather than duplicates.
func (s *RemediationService) CreateForResult(ctx context.Context, patientID string, result *entities.CheckResult) error {
	ctx, span := observability.StartSpan(ctx, "remediation.create_for_result")
	defer span.End()

	if result == nil || !result.HasIssues() {
		return nil
	}

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	roles, err := s.ehrClient.GetCareTeam(ctx, token.AccessToken, result.EncounterID)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	assignee, watchers, err := resolveParticipants(roles)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	description := buildTaskDescription(result.Issues)
	externalID := uuid.New().String()

	taskID, err := s.ehrClient.CreateTask(ctx, token.AccessToken, ehr.CreateTaskRequest{
		PatientID:   patientID,
		Assignee:    assignee,
		Watchers:    watchers,
		Title:       fmt.Sprintf("Chart corrections needed (%d issue(s))", len(result.Issues)),
		Description: description,
		ExternalID:  externalID,
	})
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	task := &entities.RemediationTask{
		EncounterID:      result.EncounterID,
		PatientID:        patientID,
		CheckResultID:    result.ID,
		TaskID:           taskID,
		Assignee:         assignee,
		Watchers:         watchers,
		Description:      description,
		IssueCount:       len(result.Issues),
		CompletionStatus: entities.TaskOpen,
	}
	if err := s.tasks.Upsert(ctx, task); err != nil {
		observability.RecordError(span, err)
		return err
	}

	s.publishTaskEvent(ctx, entities.EventTaskCreated, task)
	s.logger.Info().
		Str("encounter_id", result.EncounterID).
		Str("task_id", taskID).
		Str("assignee", assignee).
		Int("issue_count", len(result.Issues)).
		Msg("remediation task created")
	return nil
}

// PollCompletions checks open tasks against upstream. Completed tasks
// trigger a forced re-analysis of their encounter; tasks gone upstream
// are marked not_found and never polled again. Per-task failures are
// logged and counted, not fatal to the pass.
func (s *RemediationService) PollCompletions(ctx context.Context) (*PollSummary, error) {
	ctx, span := observability.StartSpan(ctx, "remediation.poll_completions")
	defer span.End()

	summary := &PollSummary{}

	open, err := s.tasks.ListOpen(ctx, openTaskPollBatch)
	if err != nil {
		observability.RecordError(span, err)
		return summary, err
	}
	if len(open) == 0 {
		return summary, nil
	}

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return summary, err
	}

	for _, task := range open {
		summary.Polled++
		s.pollOne(ctx, token.AccessToken, task, summary)
	}

	s.logger.Info().
		Int("polled", summary.Polled).
		Int("completed", summary.Completed).
		Int("not_found", summary.NotFound).
		Int("requeued", summary.Requeued).
		Int("failed", summary.Failed).
		Msg("completion poll finished")
	return summary, nil
}

func (s *RemediationService) pollOne(ctx context.Context, accessToken string, task *entities.RemediationTask, summary *PollSummary) {
	status, err := s.ehrClient.GetTaskStatus(ctx, accessToken, task.TaskID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			if err := s.tasks.UpdateCompletion(ctx, task.TaskID, entities.TaskNotFound); err != nil {
				s.logger.Error().Err(err).Str("task_id", task.TaskID).Msg("failed to mark task not found")
				summary.Failed++
				return
			}
			summary.NotFound++
			return
		}
		s.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("task status poll failed")
		summary.Failed++
		return
	}

	if _, done := entities.DoneTaskStatuses[strings.ToLower(status)]; !done {
		if err := s.tasks.UpdateCompletion(ctx, task.TaskID, entities.TaskOpen); err != nil {
			s.logger.Error().Err(err).Str("task_id", task.TaskID).Msg("failed to record poll time")
		}
		return
	}

	if err := s.tasks.UpdateCompletion(ctx, task.TaskID, entities.TaskCompleted); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.TaskID).Msg("failed to mark task completed")
		summary.Failed++
		return
	}
	summary.Completed++
	s.publishTaskEvent(ctx, entities.EventTaskCompleted, task)

	// The note presumably changed; force a fresh analysis that
	// bypasses fingerprint reuse.
	job := &entities.Job{
		Type:        entities.JobTypeNoteCheck,
		EncounterID: task.EncounterID,
		PatientID:   task.PatientID,
		Force:       true,
		TriggeredBy: "completion_poll",
	}
	if err := s.queue.Enqueue(ctx, job, 0); err != nil {
		s.logger.Error().Err(err).Str("encounter_id", task.EncounterID).Msg("failed to enqueue forced re-check")
		return
	}
	summary.Requeued++
}

// resolveParticipants picks the task assignee and watchers from the
// care team. Secondary providers and staff take the work; providers
// watch. With no active secondary provider or staff, the first active
// provider is assigned instead.
func resolveParticipants(roles []entities.CareTeamRole) (string, []string, error) {
	var assignee string
	var watchers []string

	for _, role := range roles {
		if !role.Active {
			continue
		}
		switch role.Role {
		case entities.RoleSecondaryProvider, entities.RoleStaff:
			if assignee == "" {
				assignee = role.UserID
				continue
			}
			watchers = append(watchers, role.UserID)
		case entities.RoleProvider:
			watchers = append(watchers, role.UserID)
		}
	}

	if assignee == "" && len(watchers) > 0 {
		assignee = watchers[0]
		watchers = watchers[1:]
	}
	if assignee == "" {
		return "", nil, apperrors.NewValidationError("encounter has no active care team member to assign")
	}
	return assignee, watchers, nil
}

// buildTaskDescription renders the issues as a numbered list readable
// in the upstream task UI.
func buildTaskDescription(issues []entities.Issue) string {
	var b strings.Builder
	for i, issue := range issues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, issue.Assessment, issue.Category)
		if issue.Details.HPI != "" {
			fmt.Fprintf(&b, "   HPI: %s\n", issue.Details.HPI)
		}
		if issue.Details.AP != "" {
			fmt.Fprintf(&b, "   A&P: %s\n", issue.Details.AP)
		}
		fmt.Fprintf(&b, "   Correction: %s\n", issue.Details.Correction)
	}
	return b.String()
}

func (s *RemediationService) publishTaskEvent(ctx context.Context, eventType entities.PipelineEventType, task *entities.RemediationTask) {
	event := &entities.PipelineEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		EncounterID: task.EncounterID,
		Data: map[string]string{
			"task_id":  task.TaskID,
			"assignee": task.Assignee,
		},
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, providers.EventChannelTasks, event); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("failed to publish task event")
	}
}
