package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"olivia/internal/domain"
	"olivia/internal/observability/metrics"
	"olivia/internal/ports"
)

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

type fakeVoiceProvider struct {
	mu       sync.Mutex
	sessions []*fakeVoiceSession
	tokens   []string
	err      error
	calls    int
}

func (f *fakeVoiceProvider) StartCall(_ context.Context, accessToken string) (ports.VoiceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no voice session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeVoiceSession struct {
	events  chan domain.VoiceEvent
	waitErr error
	muteErr error

	mu         sync.Mutex
	closed     bool
	stopCalls  int
	muteCalls  int
	unmuteCall int
}

func newFakeVoiceSession() *fakeVoiceSession {
	return &fakeVoiceSession{events: make(chan domain.VoiceEvent, 16)}
}

func (f *fakeVoiceSession) Events() <-chan domain.VoiceEvent { return f.events }

func (f *fakeVoiceSession) Mute() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muteCalls++
	return f.muteErr
}

func (f *fakeVoiceSession) Unmute() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmuteCall++
	return f.muteErr
}

func (f *fakeVoiceSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeVoiceSession) Wait() error { return f.waitErr }

func (f *fakeVoiceSession) send(event domain.VoiceEvent) {
	f.events <- event
}

func (f *fakeVoiceSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type savedCall struct {
	callID     string
	transcript []domain.TranscriptMessage
}

type fakeBackend struct {
	createErr   error
	saveErr     error
	summaryErr  error
	analysisErr error

	// Stored results returned by the polling endpoints, from the given
	// attempt onward (1-based). Zero means never.
	storedSummaryFrom  int32
	storedAnalysisFrom int32

	callID string
	saved  chan savedCall

	summaryCalls  atomic.Int32
	analysisCalls atomic.Int32
	getSummary    atomic.Int32
	getAnalysis   atomic.Int32

	mu       sync.Mutex
	analysis []ports.GoalAnalysisRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{callID: "call_123", saved: make(chan savedCall, 4)}
}

func (f *fakeBackend) CreateWebCall(_ context.Context, _ string) (domain.WebCall, error) {
	if f.createErr != nil {
		return domain.WebCall{}, f.createErr
	}
	return domain.WebCall{CallID: f.callID, AccessToken: "token_" + f.callID}, nil
}

func (f *fakeBackend) SaveCallData(_ context.Context, callID string, transcript []domain.TranscriptMessage) error {
	f.saved <- savedCall{callID: callID, transcript: transcript}
	return f.saveErr
}

func (f *fakeBackend) GenerateSummary(_ context.Context, _ string, _ []domain.TranscriptMessage) (domain.CallSummary, error) {
	f.summaryCalls.Add(1)
	if f.summaryErr != nil {
		return domain.CallSummary{}, f.summaryErr
	}
	return domain.CallSummary{DataQuality: domain.DataQualitySufficient, Exercise: "daily walks"}, nil
}

func (f *fakeBackend) GetSummary(_ context.Context, _ string) (*domain.CallSummary, error) {
	n := f.getSummary.Add(1)
	if f.storedSummaryFrom == 0 || n < f.storedSummaryFrom {
		return nil, nil
	}
	return &domain.CallSummary{DataQuality: domain.DataQualitySufficient, Exercise: "stored"}, nil
}

func (f *fakeBackend) AnalyzeGoalAchievement(_ context.Context, req ports.GoalAnalysisRequest) (domain.GoalAnalysis, error) {
	f.analysisCalls.Add(1)
	f.mu.Lock()
	f.analysis = append(f.analysis, req)
	f.mu.Unlock()
	if f.analysisErr != nil {
		return domain.GoalAnalysis{}, f.analysisErr
	}
	return domain.GoalAnalysis{Goal: "eat vegetables", AlignmentScore: 78}, nil
}

func (f *fakeBackend) GetGoalAnalysis(_ context.Context, _ string) (*domain.GoalAnalysis, error) {
	n := f.getAnalysis.Add(1)
	if f.storedAnalysisFrom == 0 || n < f.storedAnalysisFrom {
		return nil, errors.New("not found")
	}
	return &domain.GoalAnalysis{Goal: "stored", AlignmentScore: 60}, nil
}

type fakeGoalBackend struct {
	*fakeBackend
	goals []domain.Goal
}

func (f *fakeGoalBackend) ListGoals(_ context.Context, _ string) ([]domain.Goal, error) {
	return f.goals, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	statuses    []domain.CallStatus
	transcripts [][]domain.TranscriptMessage
	ticks       []int
	talking     []bool
	errors      []errEvent
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) CallStatusChanged(status domain.CallStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) TranscriptUpdated(transcript []domain.TranscriptMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, transcript)
}

func (f *fakeEventSink) DurationTick(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, seconds)
}

func (f *fakeEventSink) AgentTalking(talking bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.talking = append(f.talking, talking)
}

func (f *fakeEventSink) CallError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []domain.CallState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CallState, 0, len(f.statuses))
	for _, status := range f.statuses {
		out = append(out, status.State)
	}
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) snapshotTicks() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.ticks))
	copy(out, f.ticks)
	return out
}

func (f *fakeEventSink) snapshotTalking() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.talking))
	copy(out, f.talking)
	return out
}
