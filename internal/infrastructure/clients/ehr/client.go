package ehr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
	"github.com/zatekoja/Chartreviewautomation/pkg/config"
	apperrors "github.com/zatekoja/Chartreviewautomation/pkg/errors"
)

// Client is the upstream EHR REST API. Every token-authenticated call
// takes the bearer token explicitly; token acquisition lives in the
// token lifecycle service, not here.
type Client interface {
	Login(ctx context.Context, identity, secret string) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error)
	ListEncounters(ctx context.Context, token string, req ListEncountersRequest) (*ListEncountersResponse, error)
	GetNote(ctx context.Context, token, encounterID string) (*entities.NoteDocument, error)
	GetCareTeam(ctx context.Context, token, encounterID string) ([]entities.CareTeamRole, error)
	CreateTask(ctx context.Context, token string, req CreateTaskRequest) (string, error)
	GetTaskStatus(ctx context.Context, token, taskID string) (string, error)
	GetCoverage(ctx context.Context, token, patientID string) (*CoverageResponse, error)
}

type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Endpoint     string `json:"url"`
	ExpiresIn    int    `json:"expiresIn"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
}

type ListEncountersRequest struct {
	Offset int
	Limit  int
}

type ListEncountersResponse struct {
	Data []entities.Encounter `json:"data"`
}

type CreateTaskRequest struct {
	PatientID   string   `json:"patientId"`
	Assignee    string   `json:"assignee"`
	Watchers    []string `json:"watchers"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ExternalID  string   `json:"externalId"`
}

type CoverageResponse struct {
	Active  bool   `json:"active"`
	PayerID string `json:"payerId"`
	Detail  string `json:"detail,omitempty"`
}

// HTTPClient implements Client against the EHR REST API. Listing and
// document fetches share a circuit breaker so a struggling upstream
// sheds discovery load before timeouts pile up.
type HTTPClient struct {
	baseURL    string
	practiceID string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient creates a new EHR API client.
func NewHTTPClient(cfg *config.EHRConfig) (*HTTPClient, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("ehr base url is required")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ehr-read",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		practiceID: cfg.PracticeID,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		breaker:    breaker,
	}, nil
}

// Login performs a full credential login.
func (c *HTTPClient) Login(ctx context.Context, identity, secret string) (*LoginResponse, error) {
	body := map[string]string{
		"identity": identity,
		"secret":   secret,
		"practice": c.practiceID,
	}

	var resp LoginResponse
	if err := c.post(ctx, "/auth/login", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, apperrors.NewExternalError("ehr login returned no access token", nil)
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	body := map[string]string{"refreshToken": refreshToken}

	var resp RefreshResponse
	if err := c.post(ctx, "/auth/refresh", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, apperrors.NewExternalError("ehr refresh returned no access token", nil)
	}
	return &resp, nil
}

// ListEncounters pages the upstream encounter listing. An empty data
// slice signals the end of the feed.
func (c *HTTPClient) ListEncounters(ctx context.Context, token string, req ListEncountersRequest) (*ListEncountersResponse, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(req.Offset))
	params.Set("limit", strconv.Itoa(req.Limit))

	var resp ListEncountersResponse
	err := c.withBreaker(func() error {
		return c.get(ctx, "/encounters?"+params.Encode(), token, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetNote fetches the full structured note for one encounter.
func (c *HTTPClient) GetNote(ctx context.Context, token, encounterID string) (*entities.NoteDocument, error) {
	var doc entities.NoteDocument
	err := c.withBreaker(func() error {
		return c.get(ctx, "/encounters/"+url.PathEscape(encounterID)+"/note", token, &doc)
	})
	if err != nil {
		return nil, err
	}
	doc.EncounterID = encounterID
	return &doc, nil
}

// GetCareTeam fetches the encounter's care team role list.
func (c *HTTPClient) GetCareTeam(ctx context.Context, token, encounterID string) ([]entities.CareTeamRole, error) {
	var resp struct {
		Roles []entities.CareTeamRole `json:"roles"`
	}
	if err := c.get(ctx, "/encounters/"+url.PathEscape(encounterID)+"/care-team", token, &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

// CreateTask creates a remediation task upstream and returns its id.
func (c *HTTPClient) CreateTask(ctx context.Context, token string, req CreateTaskRequest) (string, error) {
	var resp struct {
		TaskID string `json:"taskId"`
	}
	if err := c.post(ctx, "/tasks", token, req, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", apperrors.NewExternalError("ehr task creation returned no id", nil)
	}
	return resp.TaskID, nil
}

// GetTaskStatus returns the upstream status of a task. A 404 maps to
// a typed not-found error so completion polling can mark the task.
func (c *HTTPClient) GetTaskStatus(ctx context.Context, token, taskID string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/tasks/"+url.PathEscape(taskID), token, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// GetCoverage returns the patient's current insurance coverage state.
func (c *HTTPClient) GetCoverage(ctx context.Context, token, patientID string) (*CoverageResponse, error) {
	var resp CoverageResponse
	if err := c.get(ctx, "/patients/"+url.PathEscape(patientID)+"/coverage", token, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) withBreaker(fn func() error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewTransientError("ehr circuit breaker open", err)
	}
	return err
}

func (c *HTTPClient) get(ctx context.Context, path, token string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, token, nil, out)
}

func (c *HTTPClient) post(ctx context.Context, path, token string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal ehr request", err)
	}
	return c.do(ctx, http.MethodPost, path, token, payload, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternalError("failed to build ehr request", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return apperrors.NewTransientError("ehr request timed out", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.NewTransientError("ehr request timed out", err)
		}
		return apperrors.NewExternalError("ehr request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(fmt.Sprintf("ehr resource not found: %s", path))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.NewUnauthorizedError(fmt.Sprintf("ehr request unauthorized with status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return apperrors.NewTransientError(fmt.Sprintf("ehr request failed with status %d", resp.StatusCode), nil)
	default:
		return apperrors.NewExternalError(fmt.Sprintf("ehr request failed with status %d", resp.StatusCode), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalError("failed to decode ehr response", err)
	}
	return nil
}
