package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordArtifactLabelsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordArtifact("summary", "generate", nil)
	m.RecordArtifact("summary", "generate", errors.New("boom"))
	m.RecordArtifact("summary", "generate", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultArtifacts.WithLabelValues("summary", "generate", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResultArtifacts.WithLabelValues("summary", "generate", "failure")))
}

func TestRecordCallLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCallStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsActive))

	m.RecordCallFinished(3)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CallsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsStarted))
}

func TestRecordBackendRequestCountsErrors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordBackendRequest("create-web-call", nil, 0.1)
	m.RecordBackendRequest("create-web-call", errors.New("down"), 0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendErrors.WithLabelValues("create-web-call")))
}

func TestServerHandlerServesHealthAndMetrics(t *testing.T) {
	s := NewServer(":0")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
