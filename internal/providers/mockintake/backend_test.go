package mockintake

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olivia/internal/domain"
	"olivia/internal/ports"
)

func TestBackendSaveRequiresIssuedCall(t *testing.T) {
	t.Parallel()

	b := NewBackend(0)
	err := b.SaveCallData(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownCall)

	call, err := b.CreateWebCall(context.Background(), "user_001")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(call.CallID, "mock_call_"))
	assert.True(t, b.Issued(call.CallID))
	require.NoError(t, b.SaveCallData(context.Background(), call.CallID, []domain.TranscriptMessage{{Role: domain.RoleUser, Content: "hi"}}))
}

func TestBackendSummaryQualityFollowsTranscript(t *testing.T) {
	t.Parallel()

	b := NewBackend(0)
	agentOnly := []domain.TranscriptMessage{{Role: domain.RoleAgent, Content: "Hello?"}}

	summary, err := b.GenerateSummary(context.Background(), "c1", agentOnly)
	require.NoError(t, err)
	assert.Equal(t, domain.DataQualityInsufficient, summary.DataQuality)
	require.NotNil(t, summary.Reason)

	summary, err = b.GenerateSummary(context.Background(), "c2", append(agentOnly, domain.TranscriptMessage{Role: domain.RoleUser, Content: "Fine"}))
	require.NoError(t, err)
	assert.Equal(t, domain.DataQualitySufficient, summary.DataQuality)
}

func TestBackendLatencyRespectsContext(t *testing.T) {
	t.Parallel()

	b := NewBackend(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.AnalyzeGoalAchievement(ctx, ports.GoalAnalysisRequest{CallID: "c1"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	analysis, err := b.GetGoalAnalysis(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, analysis)
}

func TestBackendListGoals(t *testing.T) {
	t.Parallel()

	goals, err := NewBackend(0).ListGoals(context.Background(), "user_001")
	require.NoError(t, err)
	require.Len(t, goals, 3)
	assert.Equal(t, domain.GoalStatusAchieved, goals[2].Status)
}

func TestRouterRejectsBadRequests(t *testing.T) {
	t.Parallel()

	router := NewRouter(NewBackend(0))

	cases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"invalid json", "/intake/create-web-call", "{", http.StatusBadRequest},
		{"missing user", "/intake/create-web-call", `{}`, http.StatusBadRequest},
		{"missing call id", "/intake/generate-summary", `{"transcript":[]}`, http.StatusBadRequest},
		{"unknown call", "/intake/save-call-data", `{"call_id":"x","transcript_object":[]}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRouterHealthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewRouter(NewBackend(0)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
