package ports

import (
	"context"

	"olivia/internal/domain"
)

// VoiceSession is an active real-time voice call.
type VoiceSession interface {
	Events() <-chan domain.VoiceEvent
	Mute() error
	Unmute() error
	Stop() error
	Wait() error
}

// VoiceProvider starts voice sessions from a backend-issued access token.
type VoiceProvider interface {
	StartCall(ctx context.Context, accessToken string) (VoiceSession, error)
}

// IntakeBackend is the backend that issues call credentials and computes results.
type IntakeBackend interface {
	CreateWebCall(ctx context.Context, userID string) (domain.WebCall, error)
	SaveCallData(ctx context.Context, callID string, transcript []domain.TranscriptMessage) error
	GenerateSummary(ctx context.Context, callID string, transcript []domain.TranscriptMessage) (domain.CallSummary, error)
	GetSummary(ctx context.Context, callID string) (*domain.CallSummary, error)
	AnalyzeGoalAchievement(ctx context.Context, req GoalAnalysisRequest) (domain.GoalAnalysis, error)
	GetGoalAnalysis(ctx context.Context, callID string) (*domain.GoalAnalysis, error)
}

// GoalAnalysisRequest is the input of a goal-alignment analysis.
type GoalAnalysisRequest struct {
	CallID      string
	Transcript  []domain.TranscriptMessage
	PatientID   string
	PatientName string
}

// GoalLister is optionally implemented by backends that expose care-plan goals.
type GoalLister interface {
	ListGoals(ctx context.Context, userID string) ([]domain.Goal, error)
}

// AvatarAPI starts and ends hosted avatar video conversations.
type AvatarAPI interface {
	CreateConversation(ctx context.Context, userName string) (domain.AvatarConversation, error)
	EndConversation(ctx context.Context, conversationID string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	CallStatusChanged(status domain.CallStatus)
	TranscriptUpdated(transcript []domain.TranscriptMessage)
	DurationTick(seconds int)
	AgentTalking(talking bool)
	CallError(code domain.ErrorCode, detail string)
}
