// Package mockintake is an in-memory intake backend used in development mode
// and behind the mock intake HTTP server.
package mockintake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"olivia/internal/domain"
	"olivia/internal/ports"
)

// ErrUnknownCall is returned for call ids the backend never issued.
var ErrUnknownCall = errors.New("unknown call id")

// Backend implements ports.IntakeBackend and ports.GoalLister in memory.
type Backend struct {
	latency time.Duration

	mu          sync.Mutex
	calls       map[string]string
	transcripts map[string][]domain.TranscriptMessage
	summaries   map[string]domain.CallSummary
	analyses    map[string]domain.GoalAnalysis
}

// NewBackend creates a backend that waits latency before computing results.
func NewBackend(latency time.Duration) *Backend {
	return &Backend{
		latency:     latency,
		calls:       make(map[string]string),
		transcripts: make(map[string][]domain.TranscriptMessage),
		summaries:   make(map[string]domain.CallSummary),
		analyses:    make(map[string]domain.GoalAnalysis),
	}
}

var (
	_ ports.IntakeBackend = (*Backend)(nil)
	_ ports.GoalLister    = (*Backend)(nil)
)

func (b *Backend) CreateWebCall(_ context.Context, userID string) (domain.WebCall, error) {
	call := domain.WebCall{
		CallID:      "mock_call_" + uuid.NewString(),
		AccessToken: "mock_token_" + uuid.NewString(),
	}

	b.mu.Lock()
	b.calls[call.CallID] = userID
	b.mu.Unlock()
	return call, nil
}

func (b *Backend) SaveCallData(_ context.Context, callID string, transcript []domain.TranscriptMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.calls[callID]; !ok {
		return ErrUnknownCall
	}
	b.transcripts[callID] = domain.CloneTranscript(transcript)
	return nil
}

func (b *Backend) GenerateSummary(ctx context.Context, callID string, transcript []domain.TranscriptMessage) (domain.CallSummary, error) {
	if err := b.wait(ctx); err != nil {
		return domain.CallSummary{}, err
	}

	summary := Summary()
	if !hasUserMessage(transcript) {
		summary = InsufficientSummary()
	}

	b.mu.Lock()
	b.summaries[callID] = summary
	b.mu.Unlock()
	return summary, nil
}

func (b *Backend) GetSummary(_ context.Context, callID string) (*domain.CallSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	summary, ok := b.summaries[callID]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

func (b *Backend) AnalyzeGoalAchievement(ctx context.Context, req ports.GoalAnalysisRequest) (domain.GoalAnalysis, error) {
	if err := b.wait(ctx); err != nil {
		return domain.GoalAnalysis{}, err
	}

	analysis := GoalAnalysis(req.PatientName)

	b.mu.Lock()
	b.analyses[req.CallID] = analysis
	b.mu.Unlock()
	return analysis, nil
}

func (b *Backend) GetGoalAnalysis(_ context.Context, callID string) (*domain.GoalAnalysis, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	analysis, ok := b.analyses[callID]
	if !ok {
		return nil, nil
	}
	return &analysis, nil
}

func (b *Backend) ListGoals(_ context.Context, _ string) ([]domain.Goal, error) {
	return Goals(), nil
}

// SavedTranscript returns the transcript stored for callID.
func (b *Backend) SavedTranscript(callID string) ([]domain.TranscriptMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	transcript, ok := b.transcripts[callID]
	return domain.CloneTranscript(transcript), ok
}

// Issued reports whether callID was created by this backend.
func (b *Backend) Issued(callID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.calls[callID]
	return ok
}

func (b *Backend) wait(ctx context.Context) error {
	if b.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
