// Package intake is the HTTP client for the intake backend that issues call
// credentials, stores call transcripts and computes call results.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"olivia/internal/domain"
	"olivia/internal/observability/logging"
	"olivia/internal/observability/metrics"
	"olivia/internal/ports"
)

const (
	endpointCreateWebCall   = "create-web-call"
	endpointSaveCallData    = "save-call-data"
	endpointGenerateSummary = "generate-summary"
	endpointGetSummary      = "get-summary"
	endpointAnalyzeGoal     = "analyze-goal-achievement"
	endpointGetGoalAnalysis = "get-goal-analysis"
)

// ErrEmptyResponse is returned when a successful response lacks the expected payload.
var ErrEmptyResponse = errors.New("intake backend returned an empty payload")

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("intake %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("intake %s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Config controls the intake client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client implements ports.IntakeBackend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		metrics: cfg.Metrics,
		logger:  logging.WithComponent("intake-client"),
	}
}

var _ ports.IntakeBackend = (*Client)(nil)

type createWebCallRequest struct {
	UserID string `json:"user_id"`
}

type saveCallDataRequest struct {
	CallID           string                     `json:"call_id"`
	TranscriptObject []domain.TranscriptMessage `json:"transcript_object"`
}

type generateSummaryRequest struct {
	CallID     string                     `json:"call_id"`
	Transcript []domain.TranscriptMessage `json:"transcript"`
}

type generateSummaryResponse struct {
	Summary *domain.CallSummary `json:"summary"`
}

type getSummaryResponse struct {
	HasSummary bool                `json:"has_summary"`
	Summary    *domain.CallSummary `json:"summary,omitempty"`
}

type analyzeGoalRequest struct {
	CallID      string                     `json:"call_id"`
	Transcript  []domain.TranscriptMessage `json:"transcript"`
	PatientID   string                     `json:"patient_id"`
	PatientName string                     `json:"patient_name"`
}

type getGoalAnalysisResponse struct {
	GoalAnalysis *domain.GoalAnalysis `json:"goal_analysis,omitempty"`
}

// CreateWebCall requests a short-lived voice access token for userID.
func (c *Client) CreateWebCall(ctx context.Context, userID string) (domain.WebCall, error) {
	var out domain.WebCall
	err := c.do(ctx, endpointCreateWebCall, http.MethodPost, "/intake/create-web-call", createWebCallRequest{UserID: userID}, &out)
	if err != nil {
		return domain.WebCall{}, err
	}
	if out.CallID == "" || out.AccessToken == "" {
		return domain.WebCall{}, fmt.Errorf("intake %s: %w", endpointCreateWebCall, ErrEmptyResponse)
	}
	return out, nil
}

// SaveCallData stores the final transcript of a call.
func (c *Client) SaveCallData(ctx context.Context, callID string, transcript []domain.TranscriptMessage) error {
	body := saveCallDataRequest{CallID: callID, TranscriptObject: transcript}
	return c.do(ctx, endpointSaveCallData, http.MethodPost, "/intake/save-call-data", body, nil)
}

// GenerateSummary asks the backend to summarize a call transcript.
func (c *Client) GenerateSummary(ctx context.Context, callID string, transcript []domain.TranscriptMessage) (domain.CallSummary, error) {
	var out generateSummaryResponse
	body := generateSummaryRequest{CallID: callID, Transcript: transcript}
	if err := c.do(ctx, endpointGenerateSummary, http.MethodPost, "/intake/generate-summary", body, &out); err != nil {
		return domain.CallSummary{}, err
	}
	if out.Summary == nil {
		return domain.CallSummary{}, fmt.Errorf("intake %s: %w", endpointGenerateSummary, ErrEmptyResponse)
	}
	return *out.Summary, nil
}

// GetSummary returns the stored summary, or nil when it is not ready yet.
func (c *Client) GetSummary(ctx context.Context, callID string) (*domain.CallSummary, error) {
	var out getSummaryResponse
	path := "/intake/get-summary/" + url.PathEscape(callID)
	if err := c.do(ctx, endpointGetSummary, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if !out.HasSummary {
		return nil, nil
	}
	return out.Summary, nil
}

// AnalyzeGoalAchievement asks the backend to score goal alignment for a call.
func (c *Client) AnalyzeGoalAchievement(ctx context.Context, req ports.GoalAnalysisRequest) (domain.GoalAnalysis, error) {
	var out domain.GoalAnalysis
	body := analyzeGoalRequest{
		CallID:      req.CallID,
		Transcript:  req.Transcript,
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
	}
	if err := c.do(ctx, endpointAnalyzeGoal, http.MethodPost, "/intake/analyze-goal-achievement", body, &out); err != nil {
		return domain.GoalAnalysis{}, err
	}
	return out, nil
}

// GetGoalAnalysis returns the stored goal analysis, or nil when it is not ready yet.
func (c *Client) GetGoalAnalysis(ctx context.Context, callID string) (*domain.GoalAnalysis, error) {
	var out getGoalAnalysisResponse
	path := "/intake/get-goal-analysis/" + url.PathEscape(callID)
	if err := c.do(ctx, endpointGetGoalAnalysis, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.GoalAnalysis, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, in any, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordBackendRequest(endpoint, err, time.Since(start).Seconds())
		if err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Intake request failed")
		}
	}()

	var body io.Reader
	if in != nil {
		payload, marshalErr := json.Marshal(in)
		if marshalErr != nil {
			return fmt.Errorf("intake %s: failed to encode request: %w", endpoint, marshalErr)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("intake %s: failed to build request: %w", endpoint, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("intake %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("intake %s: %w", endpoint, ErrEmptyResponse)
		}
		return fmt.Errorf("intake %s: failed to decode response: %w", endpoint, err)
	}
	return nil
}
