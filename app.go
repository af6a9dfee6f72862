package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"olivia/internal/bootstrap"
	"olivia/internal/config"
	"olivia/internal/domain"
	"olivia/internal/observability/metrics"
	"olivia/internal/ports"
	"olivia/internal/usecase"
)

const (
	eventView       = "olivia:view"
	eventStatus     = "olivia:status"
	eventTranscript = "olivia:transcript"
	eventDuration   = "olivia:duration"
	eventAgent      = "olivia:agent"
	eventResults    = "olivia:results"
	eventError      = "olivia:error"
)

var errVideoUnavailable = errors.New("video chat is not configured")

// App is the Wails application root. It routes between the home, call and
// results views and forwards call events to the frontend.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	controller    *usecase.CallController
	results       *usecase.ResultAggregator
	avatar        ports.AvatarAPI
	metricsServer *metrics.Server
	cfg           config.Config
	bootErr       error

	mu            sync.Mutex
	view          domain.View
	outcome       *domain.CallOutcome
	callResults   *domain.CallResults
	cancelResults context.CancelFunc
	conversation  *domain.AvatarConversation
}

func NewApp() *App {
	return &App{view: domain.ViewHome}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.CallError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.results = services.Results
	a.avatar = services.Avatar
	a.metricsServer = services.MetricsServer
	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	a.setView(domain.ViewHome)
	a.CallStatusChanged(domain.CallStatus{State: domain.CallStateIdle})
}

func (a *App) shutdown(_ context.Context) {
	a.mu.Lock()
	cancel := a.cancelResults
	a.cancelResults = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if a.controller != nil {
		a.controller.Close()
	}
	if err := a.EndVideoChat(); err != nil {
		log.Warn().Err(err).Msg("Failed to end video chat on shutdown")
	}
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
}

// OpenVoiceChat switches to the call view and starts a call.
func (a *App) OpenVoiceChat() (domain.CallStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.CallStatus{}, err
	}
	a.mu.Lock()
	cancel := a.cancelResults
	a.cancelResults = nil
	a.outcome = nil
	a.callResults = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	a.setView(domain.ViewCall)
	if err := a.controller.StartCall(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// EndCall hangs up and switches to the results view. Results are resolved in
// the background and delivered with the results event.
func (a *App) EndCall() (domain.CallOutcome, error) {
	if err := a.requireReady(); err != nil {
		return domain.CallOutcome{}, err
	}
	outcome, err := a.controller.EndCall(a.ctx)
	if err != nil {
		return domain.CallOutcome{}, err
	}

	a.mu.Lock()
	if a.outcome != nil && a.outcome.CallID == outcome.CallID {
		// Already ending this call; its results are on the way.
		current := *a.outcome
		a.mu.Unlock()
		return current, nil
	}
	ctx, cancel := context.WithCancel(a.ctx)
	if a.cancelResults != nil {
		a.cancelResults()
	}
	a.outcome = &outcome
	a.callResults = nil
	a.cancelResults = cancel
	a.mu.Unlock()

	a.setView(domain.ViewResults)
	go a.resolveResults(ctx, outcome)
	return outcome, nil
}

// Back returns to the home view, tearing down whatever the current view owns.
func (a *App) Back() (domain.View, error) {
	if err := a.requireReady(); err != nil {
		return domain.ViewHome, err
	}

	a.mu.Lock()
	view := a.view
	cancel := a.cancelResults
	a.cancelResults = nil
	a.outcome = nil
	a.callResults = nil
	a.mu.Unlock()

	switch view {
	case domain.ViewCall:
		a.controller.Close()
	case domain.ViewResults:
		if cancel != nil {
			cancel()
		}
	}

	a.setView(domain.ViewHome)
	return domain.ViewHome, nil
}

// ToggleMute mutes or unmutes the microphone and returns the muted state.
func (a *App) ToggleMute() (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.controller.ToggleMute()
}

// GetView returns the active view.
func (a *App) GetView() domain.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.view == "" {
		return domain.ViewHome
	}
	return a.view
}

// GetStatus returns the current call status.
func (a *App) GetStatus() domain.CallStatus {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.CallStatus{State: domain.CallStateError, Error: a.bootErr.Error()}
		}
		return domain.CallStatus{State: domain.CallStateIdle}
	}
	return a.controller.Status()
}

// GetTranscript returns the live transcript, or the finished call's
// transcript while the results view is shown.
func (a *App) GetTranscript() []domain.TranscriptMessage {
	a.mu.Lock()
	outcome := a.outcome
	a.mu.Unlock()
	if outcome != nil {
		return domain.CloneTranscript(outcome.Transcript)
	}
	if a.controller == nil {
		return []domain.TranscriptMessage{}
	}
	return a.controller.Transcript()
}

// GetDuration returns the elapsed call time formatted as m:ss.
func (a *App) GetDuration() string {
	a.mu.Lock()
	outcome := a.outcome
	a.mu.Unlock()
	if outcome != nil {
		return domain.FormatDuration(outcome.Duration)
	}
	if a.controller == nil {
		return domain.FormatDuration(0)
	}
	return domain.FormatDuration(a.controller.Duration())
}

// GetResults returns the resolved results, or nil while they are pending.
func (a *App) GetResults() *domain.CallResults {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.callResults == nil {
		return nil
	}
	out := *a.callResults
	return &out
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backendUrl": a.cfg.Backend.BaseURL,
		"intakeMode": string(a.cfg.Backend.Mode),
		"voiceMode":  string(a.cfg.Voice.Mode),
		"userId":     a.cfg.User.ID,
		"userName":   a.cfg.User.Name,
		"videoChat":  fmt.Sprintf("%t", a.avatar != nil),
	}
}

// StartVideoChat opens a hosted avatar conversation for the default user.
func (a *App) StartVideoChat() (domain.AvatarConversation, error) {
	if err := a.requireReady(); err != nil {
		return domain.AvatarConversation{}, err
	}
	if a.avatar == nil {
		a.CallError(domain.ErrorCodeAvatar, errVideoUnavailable.Error())
		return domain.AvatarConversation{}, errVideoUnavailable
	}

	conversation, err := a.avatar.CreateConversation(a.ctx, a.cfg.User.Name)
	if err != nil {
		a.CallError(domain.ErrorCodeAvatar, err.Error())
		return domain.AvatarConversation{}, err
	}

	a.mu.Lock()
	a.conversation = &conversation
	a.mu.Unlock()
	return conversation, nil
}

// EndVideoChat ends the open avatar conversation, if any.
func (a *App) EndVideoChat() error {
	a.mu.Lock()
	conversation := a.conversation
	a.conversation = nil
	a.mu.Unlock()

	if conversation == nil || a.avatar == nil {
		return nil
	}
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return a.avatar.EndConversation(ctx, conversation.ConversationID)
}

func (a *App) resolveResults(ctx context.Context, outcome domain.CallOutcome) {
	results, err := a.results.Resolve(ctx, usecase.ResultsRequest{
		CallID:     outcome.CallID,
		Transcript: outcome.Transcript,
		UserID:     a.cfg.User.ID,
		UserName:   a.cfg.User.Name,
		CallEnded:  true,
	})
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, usecase.ErrNotReady):
		results = domain.CallResults{CallID: outcome.CallID, Error: "No conversation was recorded during this call."}
	case err != nil:
		a.CallError(domain.ErrorCodeResults, err.Error())
	}

	a.mu.Lock()
	if a.outcome == nil || a.outcome.CallID != outcome.CallID {
		// The results view was left before the results arrived.
		a.mu.Unlock()
		return
	}
	a.callResults = &results
	a.mu.Unlock()

	a.emitEvent(eventResults, results)
}

func (a *App) setView(view domain.View) {
	a.mu.Lock()
	a.view = view
	a.mu.Unlock()
	a.emitEvent(eventView, map[string]string{"view": string(view)})
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) emitEvent(name string, data interface{}) {
	if a.ctx == nil {
		return
	}
	emit := a.emit
	if emit == nil {
		emit = runtime.EventsEmit
	}
	emit(a.ctx, name, data)
}

// CallStatusChanged emits call lifecycle updates to the frontend.
func (a *App) CallStatusChanged(status domain.CallStatus) {
	a.emitEvent(eventStatus, map[string]string{
		"status":  string(status.State),
		"callId":  status.CallID,
		"error":   status.Error,
		"message": statusMessage(status.State),
	})
}

// TranscriptUpdated emits the latest transcript snapshot.
func (a *App) TranscriptUpdated(transcript []domain.TranscriptMessage) {
	a.emitEvent(eventTranscript, transcript)
}

// DurationTick emits the elapsed call time.
func (a *App) DurationTick(seconds int) {
	a.emitEvent(eventDuration, map[string]interface{}{
		"seconds":   seconds,
		"formatted": domain.FormatDuration(seconds),
	})
}

// AgentTalking emits whether the agent is currently speaking.
func (a *App) AgentTalking(talking bool) {
	a.emitEvent(eventAgent, map[string]bool{"talking": talking})
}

// CallError emits backend errors to the UI.
func (a *App) CallError(code domain.ErrorCode, detail string) {
	a.emitEvent(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func statusMessage(state domain.CallState) string {
	switch state {
	case domain.CallStateIdle:
		return "Ready to call"
	case domain.CallStateConnecting:
		return "Connecting..."
	case domain.CallStateConnected:
		return "Connected"
	case domain.CallStateEnded:
		return "Call ended"
	case domain.CallStateError:
		return "Call failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeSDKUnavailable:
		return "Voice service unavailable"
	case domain.ErrorCodeCredential:
		return "Could not reach the call service"
	case domain.ErrorCodeSession:
		return "Call connection error"
	case domain.ErrorCodeResults:
		return "Results unavailable"
	case domain.ErrorCodeAvatar:
		return "Video chat unavailable"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
