package domain

import (
	"fmt"
	"time"
)

// CallState models the voice call lifecycle.
type CallState string

const (
	CallStateIdle       CallState = "idle"
	CallStateConnecting CallState = "connecting"
	CallStateConnected  CallState = "connected"
	CallStateEnded      CallState = "ended"
	CallStateError      CallState = "error"
)

// Terminal reports whether no further transitions are allowed for the call.
func (s CallState) Terminal() bool {
	return s == CallStateEnded || s == CallStateError
}

// CallStatus is the UI-visible status of the current call.
type CallStatus struct {
	State  CallState `json:"status"`
	CallID string    `json:"callId,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// ErrorCode identifies errors emitted to the UI.
type ErrorCode string

const (
	ErrorCodeStartup        ErrorCode = "startup"
	ErrorCodeSDKUnavailable ErrorCode = "sdk_unavailable"
	ErrorCodeCredential     ErrorCode = "credential_request"
	ErrorCodeSession        ErrorCode = "sdk_session"
	ErrorCodeResults        ErrorCode = "results"
	ErrorCodeAvatar         ErrorCode = "avatar"
)

// Role identifies the speaker of a transcript message.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// ParseRole maps provider roles onto agent or user. Anything that is not the
// agent is treated as the user.
func ParseRole(value string) Role {
	if value == string(RoleAgent) || value == "AGENT" {
		return RoleAgent
	}
	return RoleUser
}

// TranscriptMessage is one utterance in a call transcript.
type TranscriptMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// CloneTranscript returns a copy that does not share the backing array.
func CloneTranscript(in []TranscriptMessage) []TranscriptMessage {
	if in == nil {
		return nil
	}
	out := make([]TranscriptMessage, len(in))
	copy(out, in)
	return out
}

// VoiceEventType names the events emitted by a voice session.
type VoiceEventType string

const (
	VoiceEventCallStarted       VoiceEventType = "call_started"
	VoiceEventCallEnded         VoiceEventType = "call_ended"
	VoiceEventAgentStartTalking VoiceEventType = "agent_start_talking"
	VoiceEventAgentStopTalking  VoiceEventType = "agent_stop_talking"
	VoiceEventUpdate            VoiceEventType = "update"
	VoiceEventError             VoiceEventType = "error"
)

// VoiceEvent is a single inbound event from the voice SDK. Update events carry
// a full transcript snapshot, not a delta.
type VoiceEvent struct {
	Type       VoiceEventType      `json:"type"`
	Transcript []TranscriptMessage `json:"transcript,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// WebCall is the short-lived credential issued by the intake backend.
type WebCall struct {
	CallID      string `json:"call_id"`
	AccessToken string `json:"access_token"`
}

// CallOutcome is handed from the call view to the results view.
type CallOutcome struct {
	CallID     string              `json:"callId"`
	Transcript []TranscriptMessage `json:"transcript"`
	Duration   int                 `json:"duration"`
}

// DataQuality flags whether the call disclosed enough to summarize.
type DataQuality string

const (
	DataQualitySufficient   DataQuality = "sufficient"
	DataQualityInsufficient DataQuality = "insufficient"
)

type Meals struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
	Snacks    string `json:"snacks"`
}

type Lifestyle struct {
	Smoking  string `json:"smoking"`
	Alcohol  string `json:"alcohol"`
	FastFood string `json:"fast_food,omitempty"`
}

// CallSummary is the structured record of lifestyle facts disclosed in a call.
type CallSummary struct {
	DataQuality     DataQuality `json:"data_quality,omitempty"`
	Reason          *string     `json:"reason,omitempty"`
	Meals           Meals       `json:"meals"`
	Exercise        string      `json:"exercise"`
	Sleep           string      `json:"sleep"`
	Beverages       string      `json:"beverages"`
	Lifestyle       Lifestyle   `json:"lifestyle"`
	MentalHealth    string      `json:"mental_health"`
	AdditionalNotes string      `json:"additional_notes"`
}

// GoalAnalysis scores how well disclosed behavior matches a health goal.
type GoalAnalysis struct {
	Goal                string   `json:"goal"`
	AlignmentScore      int      `json:"alignment_score"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	Recommendations     []string `json:"recommendations"`
	Summary             string   `json:"summary"`
}

// GoalStatus is the display status of a care-plan goal.
type GoalStatus string

const (
	GoalStatusAchieved   GoalStatus = "ACHIEVED"
	GoalStatusInProgress GoalStatus = "IN PROGRESS"
	GoalStatusNotStarted GoalStatus = "NOT STARTED"
)

// Goal is a display-only care-plan goal shown alongside the results.
type Goal struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Status          GoalStatus `json:"status"`
	CurrentBehavior string     `json:"currentBehavior,omitempty"`
	Recommendation  string     `json:"recommendation"`
}

// CallResults is everything the results view renders for one call.
type CallResults struct {
	CallID       string        `json:"callId"`
	Summary      *CallSummary  `json:"summary,omitempty"`
	GoalAnalysis *GoalAnalysis `json:"goalAnalysis,omitempty"`
	Goals        []Goal        `json:"goals,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Complete reports whether both computed artifacts are present.
func (r CallResults) Complete() bool {
	return r.Summary != nil && r.GoalAnalysis != nil
}

// Empty reports whether neither computed artifact is present.
func (r CallResults) Empty() bool {
	return r.Summary == nil && r.GoalAnalysis == nil
}

// View is the screen currently shown by the shell.
type View string

const (
	ViewHome    View = "home"
	ViewCall    View = "call"
	ViewResults View = "results"
)

// AvatarConversation is a hosted video conversation with the avatar.
type AvatarConversation struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status"`
}

// FormatDuration renders elapsed seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// NowMillis returns the current time as unix milliseconds, the transcript
// timestamp unit.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
