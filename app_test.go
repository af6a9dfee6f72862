package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olivia/internal/domain"
	"olivia/internal/observability/metrics"
	"olivia/internal/providers/mockintake"
	"olivia/internal/providers/mockvoice"
	"olivia/internal/usecase"
)

func TestStatusMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.CallState]string{
		domain.CallStateIdle:       "Ready to call",
		domain.CallStateConnecting: "Connecting...",
		domain.CallStateConnected:  "Connected",
		domain.CallStateEnded:      "Call ended",
		domain.CallStateError:      "Call failed",
	}

	for state, want := range cases {
		state := state
		want := want
		t.Run(string(state), func(t *testing.T) {
			t.Parallel()
			if got := statusMessage(state); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := statusMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown state message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:        "Startup failed",
		domain.ErrorCodeSDKUnavailable: "Voice service unavailable",
		domain.ErrorCodeCredential:     "Could not reach the call service",
		domain.ErrorCodeSession:        "Call connection error",
		domain.ErrorCodeResults:        "Results unavailable",
		domain.ErrorCodeAvatar:         "Video chat unavailable",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := NewApp()
	status := app.GetStatus()
	if status.State != domain.CallStateIdle {
		t.Fatalf("unexpected status: %+v", status)
	}
	if app.GetView() != domain.ViewHome {
		t.Fatalf("expected home view")
	}
	if app.GetDuration() != "0:00" {
		t.Fatalf("unexpected duration: %q", app.GetDuration())
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.State != domain.CallStateError || status.Error != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "boot" {
		t.Fatalf("unexpected runtime info: %+v", info)
	}
}

func TestEventsAreDroppedWithoutContext(t *testing.T) {
	t.Parallel()

	called := false
	app := &App{emit: func(context.Context, string, ...interface{}) { called = true }}
	app.CallStatusChanged(domain.CallStatus{State: domain.CallStateConnected})
	app.DurationTick(3)
	if called {
		t.Fatalf("events must not be emitted before startup")
	}
}

func TestStartVideoChatWithoutAvatar(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	app := newTestApp(t, recorder, mockvoice.Config{})

	_, err := app.StartVideoChat()
	if !errors.Is(err, errVideoUnavailable) {
		t.Fatalf("expected video unavailable error, got %v", err)
	}
	if recorder.count(eventError) != 1 {
		t.Fatalf("expected an error event")
	}
	if err := app.EndVideoChat(); err != nil {
		t.Fatalf("ending without a conversation must be a no-op: %v", err)
	}
}

func TestVoiceChatFlow(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	app := newTestApp(t, recorder, mockvoice.Config{
		UserName:        "Julia Roberts",
		ConnectDelay:    time.Millisecond,
		MessageInterval: time.Millisecond,
	})

	status, err := app.OpenVoiceChat()
	require.NoError(t, err)
	assert.Contains(t, []domain.CallState{domain.CallStateConnecting, domain.CallStateConnected}, status.State)
	assert.Equal(t, domain.ViewCall, app.GetView())

	require.Eventually(t, func() bool {
		return len(app.GetTranscript()) == len(mockvoice.DefaultScript())
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.CallStateConnected, app.GetStatus().State)

	muted, err := app.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)

	outcome, err := app.EndCall()
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.CallID)
	assert.Equal(t, domain.ViewResults, app.GetView())

	require.Eventually(t, func() bool { return app.GetResults() != nil }, 2*time.Second, 5*time.Millisecond)
	results := app.GetResults()
	require.True(t, results.Complete())
	assert.Equal(t, domain.DataQualitySufficient, results.Summary.DataQuality)
	assert.Contains(t, results.GoalAnalysis.Summary, "Julia Roberts")
	assert.Len(t, results.Goals, 3)
	assert.Equal(t, 1, recorder.count(eventResults))
	assert.Len(t, app.GetTranscript(), len(outcome.Transcript))

	view, err := app.Back()
	require.NoError(t, err)
	assert.Equal(t, domain.ViewHome, view)
	assert.Nil(t, app.GetResults())

	assert.Positive(t, recorder.count(eventStatus))
	assert.Positive(t, recorder.count(eventTranscript))
	assert.Positive(t, recorder.count(eventAgent))
	assert.GreaterOrEqual(t, recorder.count(eventView), 3)
}

func TestBackFromCallTearsDown(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	app := newTestApp(t, recorder, mockvoice.Config{ConnectDelay: time.Hour})

	_, err := app.OpenVoiceChat()
	require.NoError(t, err)

	view, err := app.Back()
	require.NoError(t, err)
	assert.Equal(t, domain.ViewHome, view)
	assert.Equal(t, domain.CallStateIdle, app.GetStatus().State)

	_, err = app.EndCall()
	assert.ErrorIs(t, err, usecase.ErrNoActiveCall)
}

func TestEmptyCallShowsNoResults(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	app := newTestApp(t, recorder, mockvoice.Config{ConnectDelay: time.Hour})

	_, err := app.OpenVoiceChat()
	require.NoError(t, err)
	_, err = app.EndCall()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return app.GetResults() != nil }, 2*time.Second, 5*time.Millisecond)
	results := app.GetResults()
	assert.True(t, results.Empty())
	assert.NotEmpty(t, results.Error)
	assert.Zero(t, recorder.count(eventError))
}

func TestEndCallTwiceDeliversResultsOnce(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	app := newTestApp(t, recorder, mockvoice.Config{
		ConnectDelay:    time.Millisecond,
		MessageInterval: time.Millisecond,
	})

	_, err := app.OpenVoiceChat()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(app.GetTranscript()) == len(mockvoice.DefaultScript())
	}, 2*time.Second, 5*time.Millisecond)

	first, err := app.EndCall()
	require.NoError(t, err)
	second, err := app.EndCall()
	require.NoError(t, err)
	assert.Equal(t, first.CallID, second.CallID)

	require.Eventually(t, func() bool { return app.GetResults() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, app.GetResults().Complete())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, recorder.count(eventResults))
	assert.Zero(t, recorder.count(eventError))
}

func TestOpenVoiceChatClearsPreviousOutcome(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	app := newTestApp(t, recorder, mockvoice.Config{
		ConnectDelay:    time.Millisecond,
		MessageInterval: time.Millisecond,
	})

	_, err := app.OpenVoiceChat()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(app.GetTranscript()) == len(mockvoice.DefaultScript())
	}, 2*time.Second, 5*time.Millisecond)
	_, err = app.EndCall()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return app.GetResults() != nil }, 2*time.Second, 5*time.Millisecond)

	app.controller = usecase.NewCallController(
		mockvoice.NewProvider(mockvoice.Config{ConnectDelay: time.Hour}),
		mockintake.NewBackend(0),
		app,
		usecase.Config{UserID: "user_001", Metrics: metrics.NewMetrics(prometheus.NewRegistry())},
	)
	_, err = app.OpenVoiceChat()
	require.NoError(t, err)

	assert.Equal(t, domain.ViewCall, app.GetView())
	assert.Nil(t, app.GetResults())
	assert.Empty(t, app.GetTranscript())
	assert.Equal(t, "0:00", app.GetDuration())
}

func newTestApp(t *testing.T, recorder *eventRecorder, voice mockvoice.Config) *App {
	t.Helper()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	backend := mockintake.NewBackend(0)
	app := NewApp()
	app.ctx = context.Background()
	app.emit = recorder.emit
	app.cfg.User.ID = "user_001"
	app.cfg.User.Name = "Julia Roberts"
	app.controller = usecase.NewCallController(
		mockvoice.NewProvider(voice),
		backend,
		app,
		usecase.Config{UserID: "user_001", TickInterval: 5 * time.Millisecond, Metrics: m},
	)
	app.results = usecase.NewResultAggregator(backend, usecase.ResultsConfig{
		PollAttempts: 2,
		PollInterval: time.Millisecond,
		Metrics:      m,
	})
	t.Cleanup(func() { app.shutdown(context.Background()) })
	return app
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) emit(_ context.Context, name string, _ ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *eventRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event == name {
			n++
		}
	}
	return n
}
